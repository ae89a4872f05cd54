package school

import "time"

// Student is an enrolled learner, identified by an admission number.
type Student struct {
	ID          int64   `db:"id" json:"id"`
	AdmissionNo string  `db:"admission_no" json:"admission_no"`
	FullName    string  `db:"full_name" json:"full_name"`
	ClassRoomID int64   `db:"classroom_id" json:"classroom_id"`
	ParentPhone *string `db:"parent_phone" json:"parent_phone,omitempty"`
	UserID      *int64  `db:"user_id" json:"user_id,omitempty"`
}

// GuardianPhone returns the parent's phone number, or "" when none is on file.
func (s Student) GuardianPhone() string {
	if s.ParentPhone == nil {
		return ""
	}
	return *s.ParentPhone
}

// ClassRoom is a named group of students.
type ClassRoom struct {
	ID             int64  `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	ClassTeacherID *int64 `db:"class_teacher_id" json:"class_teacher_id,omitempty"`
}

// Teacher is a member of staff who can record marks.
type Teacher struct {
	ID       int64  `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Phone    string `db:"phone" json:"phone"`
}

// Assignment links a teacher to a subject taught in a classroom.
type Assignment struct {
	ID          int64 `db:"id" json:"id"`
	TeacherID   int64 `db:"teacher_id" json:"teacher_id"`
	SubjectID   int64 `db:"subject_id" json:"subject_id"`
	ClassRoomID int64 `db:"classroom_id" json:"classroom_id"`
	Active      bool  `db:"active" json:"active"`
}

// Subject is a course unit from the global catalog.
type Subject struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Code string `db:"code" json:"code"`
}

// Exam is a named sitting that marks are recorded against.
type Exam struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Term      string    `db:"term" json:"term"`
	Year      int       `db:"year" json:"year"`
	StartDate time.Time `db:"start_date" json:"start_date"`
}

// Mark is one student's score in one subject for one exam.
// Total mirrors ExamScore.
type Mark struct {
	ID        int64     `db:"id" json:"id"`
	ExamID    int64     `db:"exam_id" json:"exam_id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	SubjectID int64     `db:"subject_id" json:"subject_id"`
	ExamScore int       `db:"exam_score" json:"exam_score"`
	Total     int       `db:"total" json:"total"`
	Grade     string    `db:"grade" json:"grade"`
	TeacherID *int64    `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord is a student's check-in/check-out for one calendar day.
type AttendanceRecord struct {
	ID          int64      `db:"id" json:"id"`
	StudentID   int64      `db:"student_id" json:"student_id"`
	ClassRoomID int64      `db:"classroom_id" json:"classroom_id"`
	Date        time.Time  `db:"date" json:"date"`
	CheckIn     time.Time  `db:"check_in" json:"check_in"`
	CheckOut    *time.Time `db:"check_out" json:"check_out,omitempty"`
}

// Open reports whether the record still waits for a check-out.
func (r AttendanceRecord) Open() bool { return r.CheckOut == nil }
