package marks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"schoolms/internal/grading"
	"schoolms/internal/metrics"
	"schoolms/internal/school"
)

// Store is the persistence the pipeline needs.
type Store interface {
	Exam(ctx context.Context, id int64) (school.Exam, error)
	ClassRoom(ctx context.Context, id int64) (school.ClassRoom, error)
	// Teaches reports whether the teacher has an active assignment in the
	// classroom or is its class teacher.
	Teaches(ctx context.Context, teacherID, classroomID int64) (bool, error)
	ClassStudents(ctx context.Context, classroomID int64) ([]school.Student, error)
	Subjects(ctx context.Context) ([]school.Subject, error)
	// UpsertMark inserts or replaces the mark keyed by exam, student and
	// subject in one atomic statement. created is false when a row existed.
	UpsertMark(ctx context.Context, m school.Mark) (created bool, err error)
	ExamMarks(ctx context.Context, examID, classroomID int64) ([]school.Mark, error)
}

// Actor is the caller importing marks.
type Actor struct {
	TeacherID int64 // 0 when the caller has no teacher identity
	Admin     bool
}

func (a Actor) teacher() *int64 {
	if a.TeacherID == 0 {
		return nil
	}
	id := a.TeacherID
	return &id
}

// Report summarizes an import. Row problems never abort the batch.
type Report struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Errors  []string    `json:"errors"`
	Message string      `json:"message"`
	Rows    []RowResult `json:"rows"`
}

// RowResult is the informational outcome of one data row.
type RowResult struct {
	Row         int     `json:"row"`
	AdmissionNo string  `json:"admission_no"`
	Saved       int     `json:"saved"`
	Average     float64 `json:"average"`
	Grade       string  `json:"grade,omitempty"`
}

func (r *Report) rowError(row int, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf("Row %d: ", row)+fmt.Sprintf(format, args...))
}

// Pipeline imports and exports exam marks for a classroom.
type Pipeline struct {
	store Store
	log   *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(store Store, log *slog.Logger) *Pipeline {
	return &Pipeline{store: store, log: log}
}

// IngestScores reads a marks sheet and upserts one mark per valid score cell.
// Precondition failures return school.ErrNotFound, ErrForbidden,
// ErrEmptyInput or ErrUnreadableFile before anything is written.
func (p *Pipeline) IngestScores(ctx context.Context, examID, classroomID int64, file io.Reader, actor Actor) (Report, error) {
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	exam, class, err := p.examAndClass(ctx, examID, classroomID)
	if err != nil {
		return Report{}, err
	}
	if !actor.Admin {
		if actor.TeacherID == 0 {
			return Report{}, fmt.Errorf("caller has no teacher identity: %w", school.ErrForbidden)
		}
		ok, err := p.store.Teaches(ctx, actor.TeacherID, classroomID)
		if err != nil {
			return Report{}, err
		}
		if !ok {
			return Report{}, fmt.Errorf("teacher %d is not assigned to %s: %w", actor.TeacherID, class.Name, school.ErrForbidden)
		}
	}
	students, err := p.store.ClassStudents(ctx, classroomID)
	if err != nil {
		return Report{}, err
	}
	if len(students) == 0 {
		return Report{}, fmt.Errorf("no students in %s: %w", class.Name, school.ErrEmptyInput)
	}
	catalog, err := p.store.Subjects(ctx)
	if err != nil {
		return Report{}, err
	}

	tbl, err := readTable(file)
	if err != nil {
		return Report{}, err
	}
	var rows []row
	for _, r := range tbl.rows {
		if !r.blank() {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return Report{}, fmt.Errorf("file has no data rows: %w", school.ErrEmptyInput)
	}

	cols := mapColumns(tbl.header, catalog)
	byAdmission := make(map[string]school.Student, len(students))
	for _, s := range students {
		byAdmission[s.AdmissionNo] = s
	}

	rep := Report{Errors: []string{}, Rows: []RowResult{}}
	for _, r := range rows {
		p.ingestRow(ctx, &rep, r, cols, exam, class, byAdmission, actor)
	}
	rep.Message = fmt.Sprintf("Processed %d rows: %d marks created, %d updated, %d errors",
		len(rows), rep.Created, rep.Updated, len(rep.Errors))

	p.log.Info("marks imported",
		"exam", exam.ID, "classroom", class.ID, "encoding", tbl.encoding,
		"created", rep.Created, "updated", rep.Updated, "errors", len(rep.Errors))
	return rep, nil
}

func (p *Pipeline) ingestRow(ctx context.Context, rep *Report, r row, cols columns, exam school.Exam, class school.ClassRoom, byAdmission map[string]school.Student, actor Actor) {
	adm := r.cell(cols.admission)
	if adm == "" {
		rep.rowError(r.num, "missing admission number")
		return
	}
	st, ok := byAdmission[adm]
	if !ok {
		rep.rowError(r.num, "student %s not found in class %s", adm, class.Name)
		return
	}

	res := RowResult{Row: r.num, AdmissionNo: adm}
	var scores []int
	for _, sc := range cols.subjects {
		raw := r.cell(sc.index)
		if raw == "" {
			continue
		}
		score, err := strconv.Atoi(raw)
		if err != nil {
			metrics.MarkCells.WithLabelValues("invalid").Inc()
			rep.rowError(r.num, "Invalid score %q for %s (must be a whole number)", raw, sc.subject.Name)
			continue
		}
		if score < 0 || score > 100 {
			metrics.MarkCells.WithLabelValues("invalid").Inc()
			rep.rowError(r.num, "Invalid score %d for %s (must be 0-100)", score, sc.subject.Name)
			continue
		}
		scores = append(scores, score)

		created, err := p.store.UpsertMark(ctx, school.Mark{
			ExamID:    exam.ID,
			StudentID: st.ID,
			SubjectID: sc.subject.ID,
			ExamScore: score,
			Total:     score,
			Grade:     string(grading.GradeOf(float64(score))),
			TeacherID: actor.teacher(),
		})
		if err != nil {
			metrics.MarkCells.WithLabelValues("failed").Inc()
			p.log.Error("save mark", "exam", exam.ID, "student", st.ID, "subject", sc.subject.ID, "error", err)
			rep.rowError(r.num, "could not save %s for %s", sc.subject.Name, adm)
			continue
		}
		res.Saved++
		if created {
			rep.Created++
			metrics.MarkCells.WithLabelValues("created").Inc()
		} else {
			rep.Updated++
			metrics.MarkCells.WithLabelValues("updated").Inc()
		}
	}

	sum := grading.Summarize(scores)
	res.Average = sum.Average
	res.Grade = string(sum.Grade)
	if g := r.cell(cols.grade); g != "" {
		res.Grade = g
	}
	rep.Rows = append(rep.Rows, res)
}

func (p *Pipeline) examAndClass(ctx context.Context, examID, classroomID int64) (school.Exam, school.ClassRoom, error) {
	exam, err := p.store.Exam(ctx, examID)
	if err != nil {
		return school.Exam{}, school.ClassRoom{}, err
	}
	class, err := p.store.ClassRoom(ctx, classroomID)
	if err != nil {
		return school.Exam{}, school.ClassRoom{}, err
	}
	return exam, class, nil
}
