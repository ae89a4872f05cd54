package marks

import "schoolms/internal/school"

// columns maps header positions to meaning. It is resolved once per upload.
type columns struct {
	admission int
	name      int
	grade     int // -1 when absent
	subjects  []subjectColumn
}

type subjectColumn struct {
	index   int
	subject school.Subject
}

// mapColumns matches header cells against the fixed columns and the subject
// catalog (by name, case-insensitively). Total and average are derived, so
// they are never read. The first column for a subject wins.
func mapColumns(header []string, catalog []school.Subject) columns {
	bySubject := make(map[string]school.Subject, len(catalog))
	for _, s := range catalog {
		bySubject[normalizeHeader(s.Name)] = s
	}

	cols := columns{admission: -1, name: -1, grade: -1}
	taken := map[int64]bool{}
	for i, h := range header {
		switch canonicalHeader(h) {
		case colAdmissionNo:
			if cols.admission < 0 {
				cols.admission = i
			}
			continue
		case colName:
			if cols.name < 0 {
				cols.name = i
			}
			continue
		case colGrade:
			if cols.grade < 0 {
				cols.grade = i
			}
			continue
		case colTotal, colAverage:
			continue
		}
		s, ok := bySubject[normalizeHeader(h)]
		if !ok || taken[s.ID] {
			continue
		}
		taken[s.ID] = true
		cols.subjects = append(cols.subjects, subjectColumn{index: i, subject: s})
	}
	return cols
}
