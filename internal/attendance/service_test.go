package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolms/internal/logger"
	"schoolms/internal/school"
)

// memStore is an in-memory Store guarded by a single mutex.
type memStore struct {
	mu       sync.Mutex
	students map[string]school.Student
	records  []school.AttendanceRecord
	nextID   int64
}

func newMemStore(students ...school.Student) *memStore {
	m := &memStore{students: map[string]school.Student{}}
	for _, s := range students {
		m.students[s.AdmissionNo] = s
	}
	return m
}

func (m *memStore) StudentByAdmissionNo(_ context.Context, no string) (school.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[no]
	if !ok {
		return school.Student{}, fmt.Errorf("student %q: %w", no, school.ErrNotFound)
	}
	return s, nil
}

func (m *memStore) WithDay(_ context.Context, studentID int64, day time.Time, fn func(Day) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := append([]school.AttendanceRecord(nil), m.records...)
	next := m.nextID
	if err := fn(&memDay{m: m, studentID: studentID, day: day}); err != nil {
		m.records, m.nextID = snapshot, next
		return err
	}
	return nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, r := range m.records {
		if f.ClassRoomID != 0 && r.ClassRoomID != f.ClassRoomID {
			continue
		}
		if !f.Date.IsZero() && !r.Date.Equal(f.Date) {
			continue
		}
		out = append(out, Entry{AttendanceRecord: r})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CheckIn.After(out[j].CheckIn)
	})
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memDay struct {
	m         *memStore
	studentID int64
	day       time.Time
}

func (d *memDay) Latest(context.Context) (*school.AttendanceRecord, error) {
	var latest *school.AttendanceRecord
	for i := range d.m.records {
		r := d.m.records[i]
		if r.StudentID != d.studentID || !r.Date.Equal(d.day) {
			continue
		}
		if latest == nil || !r.CheckIn.Before(latest.CheckIn) {
			latest = &r
		}
	}
	return latest, nil
}

func (d *memDay) Insert(_ context.Context, rec school.AttendanceRecord) (school.AttendanceRecord, error) {
	d.m.nextID++
	rec.ID = d.m.nextID
	d.m.records = append(d.m.records, rec)
	return rec, nil
}

func (d *memDay) CheckOut(_ context.Context, id int64, at time.Time) (school.AttendanceRecord, error) {
	for i := range d.m.records {
		if d.m.records[i].ID == id {
			if d.m.records[i].CheckOut != nil {
				return school.AttendanceRecord{}, school.ErrAlreadyCompleted
			}
			d.m.records[i].CheckOut = &at
			return d.m.records[i], nil
		}
	}
	return school.AttendanceRecord{}, school.ErrNotFound
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	to   []string
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, to, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.sent = append(f.sent, msg)
	return f.err
}

var eat = time.FixedZone("EAT", 3*60*60)

func phone(s string) *string { return &s }

func setup(t *testing.T, students ...school.Student) (*Tracker, *memStore, *fakeNotifier) {
	t.Helper()
	st := newMemStore(students...)
	n := &fakeNotifier{}
	tr := NewTracker(st, n, LocalMidnight{Loc: eat}, logger.Discard())
	tr.spawn = func(f func()) { f() } // run notifications inline
	return tr, st, n
}

func at(day, clock string) time.Time {
	ts, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, eat)
	if err != nil {
		panic(err)
	}
	return ts
}

func TestRecordScanLifecycle(t *testing.T) {
	s001 := school.Student{ID: 1, AdmissionNo: "S001", FullName: "Asha Juma", ClassRoomID: 7, ParentPhone: phone("+2550001")}
	tr, st, n := setup(t, s001)
	ctx := context.Background()

	rec, in, err := tr.RecordScan(ctx, "S001", at("2024-03-04", "08:00"))
	require.NoError(t, err)
	assert.True(t, rec.Open())
	assert.Equal(t, at("2024-03-04", "08:00"), rec.CheckIn)
	assert.Equal(t, int64(7), rec.ClassRoomID)
	assert.Equal(t, Arrived, in.Event)
	assert.Equal(t, "Dear Parent, Asha Juma has arrived at the school on Mar 04, 2024 at 08:00 AM.", in.Message)

	closed, in, err := tr.RecordScan(ctx, "S001", at("2024-03-04", "16:00"))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, closed.ID)
	require.NotNil(t, closed.CheckOut)
	assert.Equal(t, at("2024-03-04", "16:00"), *closed.CheckOut)
	assert.Equal(t, Left, in.Event)
	assert.Equal(t, "Dear Parent, Asha Juma has left the school on Mar 04, 2024 at 04:00 PM.", in.Message)
	assert.Equal(t, 1, st.count())

	_, _, err = tr.RecordScan(ctx, "S001", at("2024-03-04", "18:00"))
	assert.ErrorIs(t, err, school.ErrAlreadyCompleted)
	assert.Equal(t, 1, st.count())
	list, _ := st.List(ctx, Filter{})
	require.Len(t, list, 1)
	assert.Equal(t, at("2024-03-04", "16:00"), *list[0].CheckOut)

	assert.Equal(t, []string{"+2550001", "+2550001"}, n.to)
	assert.Len(t, n.sent, 2)
}

func TestRecordScanUnknownStudent(t *testing.T) {
	tr, st, _ := setup(t)

	_, _, err := tr.RecordScan(context.Background(), "NOPE", at("2024-03-04", "08:00"))
	assert.ErrorIs(t, err, school.ErrNotFound)

	_, _, err = tr.RecordScan(context.Background(), "   ", at("2024-03-04", "08:00"))
	assert.ErrorIs(t, err, school.ErrNotFound)
	assert.Zero(t, st.count())
}

func TestRecordScanWithoutGuardianPhone(t *testing.T) {
	tr, _, n := setup(t, school.Student{ID: 2, AdmissionNo: "S002", FullName: "Baraka"})

	_, in, err := tr.RecordScan(context.Background(), "S002", at("2024-03-04", "08:00"))
	require.NoError(t, err)
	assert.False(t, in.Deliverable())
	assert.Equal(t, Arrived, in.Event)
	assert.Empty(t, n.sent)
}

func TestRecordScanNotifierFailureIsSwallowed(t *testing.T) {
	tr, st, n := setup(t, school.Student{ID: 1, AdmissionNo: "S001", FullName: "Asha", ParentPhone: phone("+2550001")})
	n.err = errors.New("gateway down")

	rec, _, err := tr.RecordScan(context.Background(), "S001", at("2024-03-04", "08:00"))
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, 1, st.count())
}

func TestRecordScanFirstCallOfDayCreatesOneOpenRecord(t *testing.T) {
	var students []school.Student
	for i := 1; i <= 5; i++ {
		students = append(students, school.Student{ID: int64(i), AdmissionNo: fmt.Sprintf("S%03d", i), FullName: "x"})
	}
	tr, st, _ := setup(t, students...)

	for _, s := range students {
		rec, _, err := tr.RecordScan(context.Background(), s.AdmissionNo, at("2024-03-04", "07:30"))
		require.NoError(t, err)
		assert.True(t, rec.Open())
		assert.Equal(t, s.ID, rec.StudentID)
	}
	assert.Equal(t, len(students), st.count())
}

func TestRecordScanNewDayAfterMidnight(t *testing.T) {
	tr, st, _ := setup(t, school.Student{ID: 1, AdmissionNo: "S001", FullName: "Asha"})
	ctx := context.Background()

	_, _, err := tr.RecordScan(ctx, "S001", at("2024-03-04", "23:50"))
	require.NoError(t, err)

	// the open session from yesterday is left alone; this is a new check-in
	rec, in, err := tr.RecordScan(ctx, "S001", at("2024-03-05", "00:10"))
	require.NoError(t, err)
	assert.Equal(t, Arrived, in.Event)
	assert.True(t, rec.Open())
	assert.Equal(t, at("2024-03-05", "00:00"), rec.Date)
	assert.Equal(t, 2, st.count())
}

func TestRecordScanDayUsesInstitutionZone(t *testing.T) {
	tr, _, _ := setup(t, school.Student{ID: 1, AdmissionNo: "S001", FullName: "Asha"})

	// 22:30 UTC on the 3rd is 01:30 on the 4th in EAT
	rec, _, err := tr.RecordScan(context.Background(), "S001", time.Date(2024, 3, 3, 22, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, at("2024-03-04", "00:00"), rec.Date)
}

func TestRecordScanConcurrentScansSerialize(t *testing.T) {
	tr, st, _ := setup(t, school.Student{ID: 1, AdmissionNo: "S001", FullName: "Asha"})
	tr.spawn = func(f func()) { go f() }

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		arrived   int
		left      int
		completed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, in, err := tr.RecordScan(context.Background(), "S001", at("2024-03-04", "08:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, school.ErrAlreadyCompleted):
				completed++
			case err != nil:
				t.Errorf("unexpected error: %v", err)
			case in.Event == Arrived:
				arrived++
			case in.Event == Left:
				left++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, arrived)
	assert.Equal(t, 1, left)
	assert.Equal(t, 6, completed)
	assert.Equal(t, 1, st.count())

	list, err := st.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].CheckOut)
	assert.False(t, list[0].CheckOut.Before(list[0].CheckIn))
}

func TestRecordScanRejectsCheckOutBeforeCheckIn(t *testing.T) {
	s001 := school.Student{ID: 1, AdmissionNo: "S001", FullName: "Asha Juma", ParentPhone: phone("+2550001")}
	tr, st, n := setup(t, s001)
	ctx := context.Background()

	_, _, err := tr.RecordScan(ctx, "S001", at("2024-03-04", "16:00"))
	require.NoError(t, err)

	_, _, err = tr.RecordScan(ctx, "S001", at("2024-03-04", "07:59"))
	assert.ErrorIs(t, err, school.ErrOutOfOrder)
	assert.Len(t, n.sent, 1, "no notification for the rejected scan")

	list, err := st.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].CheckOut)

	rec, in, err := tr.RecordScan(ctx, "S001", at("2024-03-04", "16:00"))
	require.NoError(t, err)
	assert.Equal(t, Left, in.Event)
	assert.Equal(t, at("2024-03-04", "16:00"), *rec.CheckOut)
}

func TestListNormalizesDate(t *testing.T) {
	tr, _, _ := setup(t,
		school.Student{ID: 1, AdmissionNo: "S001", FullName: "Asha", ClassRoomID: 7},
		school.Student{ID: 2, AdmissionNo: "S002", FullName: "Baraka", ClassRoomID: 8},
	)
	ctx := context.Background()
	_, _, _ = tr.RecordScan(ctx, "S001", at("2024-03-04", "08:00"))
	_, _, _ = tr.RecordScan(ctx, "S002", at("2024-03-04", "08:05"))
	_, _, _ = tr.RecordScan(ctx, "S001", at("2024-03-05", "07:55"))

	all, err := tr.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, at("2024-03-05", "07:55"), all[0].CheckIn)
	assert.Equal(t, at("2024-03-04", "08:05"), all[1].CheckIn)

	day, err := tr.List(ctx, Filter{Date: at("2024-03-04", "13:00")})
	require.NoError(t, err)
	assert.Len(t, day, 2)

	class, err := tr.List(ctx, Filter{ClassRoomID: 7})
	require.NoError(t, err)
	assert.Len(t, class, 2)
}

func TestLocalMidnight(t *testing.T) {
	p := LocalMidnight{Loc: eat}
	assert.Equal(t, at("2024-03-04", "00:00"), p.Day(at("2024-03-04", "23:59")))
	assert.Equal(t, time.Local, LocalMidnight{}.Location())
}
