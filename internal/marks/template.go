package marks

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"sort"

	"github.com/xuri/excelize/v2"

	"schoolms/internal/school"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Template is a generated marks sheet ready to download.
type Template struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GenerateTemplate builds a CSV with one row per enrolled student and one
// blank column per subject.
func (p *Pipeline) GenerateTemplate(ctx context.Context, examID, classroomID int64) (Template, error) {
	exam, class, grid, err := p.templateGrid(ctx, examID, classroomID)
	if err != nil {
		return Template{}, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(grid); err != nil {
		return Template{}, err
	}
	return Template{
		Filename:    templateName(exam, class, "csv"),
		ContentType: ContentTypeCSV,
		Data:        buf.Bytes(),
	}, nil
}

// GenerateTemplateXLSX builds the same grid as GenerateTemplate as a workbook.
func (p *Pipeline) GenerateTemplateXLSX(ctx context.Context, examID, classroomID int64) (Template, error) {
	exam, class, grid, err := p.templateGrid(ctx, examID, classroomID)
	if err != nil {
		return Template{}, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, rec := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return Template{}, err
		}
		vals := make([]any, len(rec))
		for j, v := range rec {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return Template{}, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return Template{}, err
	}
	return Template{
		Filename:    templateName(exam, class, "xlsx"),
		ContentType: ContentTypeXLSX,
		Data:        buf.Bytes(),
	}, nil
}

func (p *Pipeline) templateGrid(ctx context.Context, examID, classroomID int64) (school.Exam, school.ClassRoom, [][]string, error) {
	exam, class, err := p.examAndClass(ctx, examID, classroomID)
	if err != nil {
		return school.Exam{}, school.ClassRoom{}, nil, err
	}
	students, err := p.store.ClassStudents(ctx, classroomID)
	if err != nil {
		return school.Exam{}, school.ClassRoom{}, nil, err
	}
	subjects, err := p.store.Subjects(ctx)
	if err != nil {
		return school.Exam{}, school.ClassRoom{}, nil, err
	}
	sortSubjects(subjects)
	sortStudents(students)

	header := []string{colAdmissionNo, colName}
	for _, s := range subjects {
		header = append(header, s.Name)
	}
	header = append(header, colTotal, colAverage, colGrade)

	grid := [][]string{header}
	for _, st := range students {
		rec := make([]string, len(header))
		rec[0] = st.AdmissionNo
		rec[1] = st.FullName
		grid = append(grid, rec)
	}
	return exam, class, grid, nil
}

func templateName(exam school.Exam, class school.ClassRoom, ext string) string {
	return fmt.Sprintf("marks_template_%s_%s.%s",
		unsafeFilename.ReplaceAllString(exam.Name, "_"),
		unsafeFilename.ReplaceAllString(class.Name, "_"), ext)
}

func sortSubjects(s []school.Subject) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Name < s[j].Name })
}

func sortStudents(s []school.Student) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].FullName != s[j].FullName {
			return s[i].FullName < s[j].FullName
		}
		return s[i].AdmissionNo < s[j].AdmissionNo
	})
}
