package marks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"schoolms/internal/school"
)

const markColumns = `m.id, m.exam_id, m.student_id, m.subject_id, m.exam_score, m.total, m.grade, m.teacher_id, m.created_at, m.updated_at`

// Repository is the Postgres Store.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Exam(ctx context.Context, id int64) (school.Exam, error) {
	var e school.Exam
	err := r.db.GetContext(ctx, &e, `SELECT id, name, term, year, start_date FROM exams WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return school.Exam{}, fmt.Errorf("exam %d: %w", id, school.ErrNotFound)
	}
	return e, err
}

func (r *Repository) ClassRoom(ctx context.Context, id int64) (school.ClassRoom, error) {
	var c school.ClassRoom
	err := r.db.GetContext(ctx, &c, `SELECT id, name, class_teacher_id FROM classrooms WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return school.ClassRoom{}, fmt.Errorf("classroom %d: %w", id, school.ErrNotFound)
	}
	return c, err
}

func (r *Repository) Teaches(ctx context.Context, teacherID, classroomID int64) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM teacher_subject_classes
			WHERE teacher_id = $1 AND classroom_id = $2 AND active
		) OR EXISTS (
			SELECT 1 FROM classrooms WHERE id = $2 AND class_teacher_id = $1
		)
	`, teacherID, classroomID)
	return ok, err
}

func (r *Repository) ClassStudents(ctx context.Context, classroomID int64) ([]school.Student, error) {
	var res []school.Student
	err := r.db.SelectContext(ctx, &res, `
		SELECT id, admission_no, full_name, classroom_id, parent_phone, user_id
		FROM students WHERE classroom_id = $1
		ORDER BY full_name, admission_no
	`, classroomID)
	return res, err
}

func (r *Repository) Subjects(ctx context.Context) ([]school.Subject, error) {
	var res []school.Subject
	err := r.db.SelectContext(ctx, &res, `SELECT id, name, code FROM subjects ORDER BY name`)
	return res, err
}

// UpsertMark relies on xmax being zero only for freshly inserted tuples.
func (r *Repository) UpsertMark(ctx context.Context, m school.Mark) (bool, error) {
	var created bool
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO marks (exam_id, student_id, subject_id, exam_score, total, grade, teacher_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (exam_id, student_id, subject_id) DO UPDATE SET
			exam_score = EXCLUDED.exam_score,
			total      = EXCLUDED.total,
			grade      = EXCLUDED.grade,
			teacher_id = EXCLUDED.teacher_id,
			updated_at = NOW()
		RETURNING (xmax = 0) AS created
	`, m.ExamID, m.StudentID, m.SubjectID, m.ExamScore, m.Total, m.Grade, m.TeacherID)
	return created, err
}

func (r *Repository) ExamMarks(ctx context.Context, examID, classroomID int64) ([]school.Mark, error) {
	var res []school.Mark
	err := r.db.SelectContext(ctx, &res, `
		SELECT `+markColumns+`
		FROM marks m
		JOIN students s ON s.id = m.student_id
		WHERE m.exam_id = $1 AND s.classroom_id = $2
		ORDER BY m.student_id, m.subject_id
	`, examID, classroomID)
	return res, err
}
