package marks

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"schoolms/internal/school"
)

// Header names shared by the template and the importer.
const (
	colAdmissionNo = "admission_no"
	colName        = "name"
	colTotal       = "total"
	colAverage     = "average"
	colGrade       = "grade"
)

var headerAliases = map[string]string{
	"admission_no":     colAdmissionNo,
	"admission_number": colAdmissionNo,
	"adm_no":           colAdmissionNo,
	"name":             colName,
	"student_name":     colName,
	"full_name":        colName,
	"total":            colTotal,
	"average":          colAverage,
	"grade":            colGrade,
}

// tried in order; the first that yields a usable header wins
var textEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8BOM},
	{"utf-16", unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)},
	{"windows-1252", charmap.Windows1252},
}

var zipMagic = []byte("PK\x03\x04")

// table is a decoded spreadsheet: the header row plus data rows.
type table struct {
	encoding string
	header   []string
	rows     []row
}

type row struct {
	num   int // 1-based spreadsheet row; the header is row 1
	cells []string
}

func (r row) cell(i int) string {
	if i < 0 || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r row) blank() bool {
	for _, c := range r.cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// readTable decodes an uploaded CSV (in any supported encoding) or XLSX
// workbook. Failures wrap school.ErrUnreadableFile.
func readTable(r io.Reader) (*table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %v: %w", err, school.ErrUnreadableFile)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("file is empty: %w", school.ErrUnreadableFile)
	}
	if bytes.HasPrefix(raw, zipMagic) {
		return readWorkbook(raw)
	}

	var lastErr error
	for _, candidate := range textEncodings {
		t, err := decodeCSV(raw, candidate.enc)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", candidate.name, err)
			continue
		}
		t.encoding = candidate.name
		return t, nil
	}
	return nil, fmt.Errorf("no supported encoding could read the file (%v): %w", lastErr, school.ErrUnreadableFile)
}

func decodeCSV(raw []byte, enc encoding.Encoding) (*table, error) {
	text, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(text) || bytes.ContainsRune(text, utf8.RuneError) || bytes.IndexByte(text, 0) >= 0 {
		return nil, errors.New("invalid characters")
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return newTable(records)
}

func readWorkbook(raw []byte) (*table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %v: %w", err, school.ErrUnreadableFile)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets: %w", school.ErrUnreadableFile)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %v: %w", sheets[0], err, school.ErrUnreadableFile)
	}
	t, err := newTable(records)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, school.ErrUnreadableFile)
	}
	t.encoding = "xlsx"
	return t, nil
}

func newTable(records [][]string) (*table, error) {
	if len(records) == 0 {
		return nil, errors.New("no header row")
	}
	header := records[0]
	if err := requireHeaders(header); err != nil {
		return nil, err
	}
	t := &table{header: header}
	for i, rec := range records[1:] {
		t.rows = append(t.rows, row{num: i + 2, cells: rec})
	}
	return t, nil
}

func requireHeaders(header []string) error {
	seen := map[string]bool{}
	for _, h := range header {
		seen[canonicalHeader(h)] = true
	}
	var missing []string
	for _, want := range []string{colAdmissionNo, colName} {
		if !seen[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// normalizeHeader lowercases and joins words with underscores:
// " Admission-No " becomes "admission_no".
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(h, "-", " ")
	return strings.ToLower(strings.Join(strings.Fields(h), "_"))
}

func canonicalHeader(h string) string {
	n := normalizeHeader(h)
	if c, ok := headerAliases[n]; ok {
		return c
	}
	return n
}
