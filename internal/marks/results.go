package marks

import (
	"context"

	"schoolms/internal/grading"
	"schoolms/internal/school"
)

// StudentResult is one student's line on the results sheet. Scores are keyed
// by subject name; subjects without a mark are absent.
type StudentResult struct {
	StudentID   int64          `json:"student_id"`
	AdmissionNo string         `json:"admission_no"`
	Name        string         `json:"name"`
	Scores      map[string]int `json:"scores"`
	grading.Summary
}

// ResultSheet is an exam's marks for one classroom.
type ResultSheet struct {
	Exam      school.Exam      `json:"exam"`
	ClassRoom school.ClassRoom `json:"classroom"`
	Subjects  []school.Subject `json:"subjects"`
	Students  []StudentResult  `json:"students"`
}

// Results collects recorded marks per student with totals and grades.
func (p *Pipeline) Results(ctx context.Context, examID, classroomID int64) (ResultSheet, error) {
	exam, class, err := p.examAndClass(ctx, examID, classroomID)
	if err != nil {
		return ResultSheet{}, err
	}
	students, err := p.store.ClassStudents(ctx, classroomID)
	if err != nil {
		return ResultSheet{}, err
	}
	subjects, err := p.store.Subjects(ctx)
	if err != nil {
		return ResultSheet{}, err
	}
	marks, err := p.store.ExamMarks(ctx, examID, classroomID)
	if err != nil {
		return ResultSheet{}, err
	}
	sortSubjects(subjects)
	sortStudents(students)

	subjectName := make(map[int64]string, len(subjects))
	for _, s := range subjects {
		subjectName[s.ID] = s.Name
	}
	byStudent := map[int64][]school.Mark{}
	for _, m := range marks {
		byStudent[m.StudentID] = append(byStudent[m.StudentID], m)
	}

	sheet := ResultSheet{Exam: exam, ClassRoom: class, Subjects: subjects, Students: make([]StudentResult, 0, len(students))}
	for _, st := range students {
		res := StudentResult{StudentID: st.ID, AdmissionNo: st.AdmissionNo, Name: st.FullName, Scores: map[string]int{}}
		var totals []int
		for _, m := range byStudent[st.ID] {
			name, ok := subjectName[m.SubjectID]
			if !ok {
				continue
			}
			res.Scores[name] = m.Total
			totals = append(totals, m.Total)
		}
		res.Summary = grading.Summarize(totals)
		sheet.Students = append(sheet.Students, res)
	}
	return sheet, nil
}
