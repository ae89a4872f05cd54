package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"schoolms/internal/school"
	"schoolms/internal/store"
)

const dateLayout = "2006-01-02"

const recordColumns = `id, student_id, classroom_id, date, check_in, check_out`

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// StudentByAdmissionNo resolves a student.
func (r *Repository) StudentByAdmissionNo(ctx context.Context, admissionNo string) (school.Student, error) {
	var s school.Student
	err := r.db.GetContext(ctx, &s, `
		SELECT id, admission_no, full_name, classroom_id, parent_phone, user_id
		FROM students WHERE admission_no = $1
	`, admissionNo)
	if errors.Is(err, sql.ErrNoRows) {
		return school.Student{}, fmt.Errorf("student %q: %w", admissionNo, school.ErrNotFound)
	}
	return s, err
}

// WithDay locks the student row for the length of a transaction, so scans of
// one student run one at a time. UNIQUE (student_id, date) backs this up.
func (r *Repository) WithDay(ctx context.Context, studentID int64, day time.Time, fn func(Day) error) error {
	return store.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, studentID); err != nil {
			return err
		}
		return fn(&dayTx{tx: tx, studentID: studentID, date: day.Format(dateLayout)})
	})
}

type dayTx struct {
	tx        *sqlx.Tx
	studentID int64
	date      string
}

func (d *dayTx) Latest(ctx context.Context) (*school.AttendanceRecord, error) {
	var rec school.AttendanceRecord
	err := d.tx.GetContext(ctx, &rec, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE student_id = $1 AND date = $2
		ORDER BY check_in DESC, id DESC
		LIMIT 1
	`, d.studentID, d.date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (d *dayTx) Insert(ctx context.Context, rec school.AttendanceRecord) (school.AttendanceRecord, error) {
	var out school.AttendanceRecord
	err := d.tx.QueryRowxContext(ctx, `
		INSERT INTO attendance_records (student_id, classroom_id, date, check_in)
		VALUES ($1, $2, $3, $4)
		RETURNING `+recordColumns,
		rec.StudentID, rec.ClassRoomID, d.date, rec.CheckIn).StructScan(&out)
	return out, err
}

func (d *dayTx) CheckOut(ctx context.Context, id int64, at time.Time) (school.AttendanceRecord, error) {
	var out school.AttendanceRecord
	err := d.tx.QueryRowxContext(ctx, `
		UPDATE attendance_records SET check_out = $2
		WHERE id = $1 AND check_out IS NULL
		RETURNING `+recordColumns,
		id, at).StructScan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return school.AttendanceRecord{}, school.ErrAlreadyCompleted
	}
	return out, err
}

// List returns records with basic filters.
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `
		SELECT a.id, a.student_id, a.classroom_id, a.date, a.check_in, a.check_out,
		       s.admission_no, s.full_name AS student_name, c.name AS classroom_name
		FROM attendance_records a
		JOIN students s ON s.id = a.student_id
		JOIN classrooms c ON c.id = a.classroom_id`
	args := []any{}
	clauses := []string{}
	if f.ClassRoomID != 0 {
		args = append(args, f.ClassRoomID)
		clauses = append(clauses, "a.classroom_id = $"+strconv.Itoa(len(args)))
	}
	if !f.Date.IsZero() {
		args = append(args, f.Date.Format(dateLayout))
		clauses = append(clauses, "a.date = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY a.date DESC, a.check_in DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	var res []Entry
	if err := r.db.SelectContext(ctx, &res, query, args...); err != nil {
		return nil, err
	}
	return res, nil
}
