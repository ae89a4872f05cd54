package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"schoolms/internal/metrics"
	"schoolms/internal/notify"
	"schoolms/internal/school"
)

// Event is what a scan did to the day's record.
type Event string

const (
	Arrived Event = "arrived"
	Left    Event = "left"
)

// Intent describes the guardian notification a scan calls for.
// Recipient is empty when the student has no guardian phone on file.
type Intent struct {
	Event     Event  `json:"event"`
	Recipient string `json:"recipient,omitempty"`
	Message   string `json:"message"`
}

// Deliverable reports whether there is someone to notify.
func (i Intent) Deliverable() bool { return i.Recipient != "" }

// Store persists attendance records.
type Store interface {
	StudentByAdmissionNo(ctx context.Context, admissionNo string) (school.Student, error)
	// WithDay runs fn with exclusive access to the student's records for day.
	// Scans of the same student on the same day never overlap inside fn.
	WithDay(ctx context.Context, studentID int64, day time.Time, fn func(Day) error) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Day is the locked view of one student's attendance on one day.
type Day interface {
	// Latest returns the most recent record by check-in (ties: last inserted), or nil.
	Latest(ctx context.Context) (*school.AttendanceRecord, error)
	Insert(ctx context.Context, rec school.AttendanceRecord) (school.AttendanceRecord, error)
	CheckOut(ctx context.Context, id int64, at time.Time) (school.AttendanceRecord, error)
}

// Filter narrows attendance listings. Zero values mean "any".
type Filter struct {
	ClassRoomID int64
	Date        time.Time
	Limit       int
	Offset      int
}

// Entry is a record joined with the names shown in listings.
type Entry struct {
	school.AttendanceRecord
	AdmissionNo   string `db:"admission_no" json:"admission_no"`
	StudentName   string `db:"student_name" json:"student"`
	ClassRoomName string `db:"classroom_name" json:"classroom"`
}

// DayPolicy decides which calendar day a scan belongs to.
type DayPolicy interface {
	Day(t time.Time) time.Time
	Location() *time.Location
}

// LocalMidnight starts each day at midnight in the institution's time zone.
type LocalMidnight struct {
	Loc *time.Location
}

// Day truncates t to midnight in the configured zone.
func (p LocalMidnight) Day(t time.Time) time.Time {
	l := t.In(p.Location())
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, p.Location())
}

// Location returns the configured zone, defaulting to the process zone.
func (p LocalMidnight) Location() *time.Location {
	if p.Loc == nil {
		return time.Local
	}
	return p.Loc
}

// Tracker turns badge scans into check-ins and check-outs.
type Tracker struct {
	store         Store
	notifier      notify.Notifier
	days          DayPolicy
	log           *slog.Logger
	notifyTimeout time.Duration
	spawn         func(func())
}

// NewTracker creates a tracker. Notifications go out through n after each
// successful scan.
func NewTracker(store Store, n notify.Notifier, days DayPolicy, log *slog.Logger) *Tracker {
	return &Tracker{
		store:         store,
		notifier:      n,
		days:          days,
		log:           log,
		notifyTimeout: 10 * time.Second,
		spawn:         func(f func()) { go f() },
	}
}

// RecordScan applies a scan taken at the given time: the first scan of the
// day checks the student in, the second checks them out, any further scan
// fails with school.ErrAlreadyCompleted. A check-out timestamped before the
// check-in fails with school.ErrOutOfOrder.
func (t *Tracker) RecordScan(ctx context.Context, admissionNo string, at time.Time) (school.AttendanceRecord, Intent, error) {
	admissionNo = strings.TrimSpace(admissionNo)
	if admissionNo == "" {
		metrics.Scans.WithLabelValues("not_found").Inc()
		return school.AttendanceRecord{}, Intent{}, fmt.Errorf("admission number required: %w", school.ErrNotFound)
	}

	student, err := t.store.StudentByAdmissionNo(ctx, admissionNo)
	if err != nil {
		t.countFailure(err)
		return school.AttendanceRecord{}, Intent{}, err
	}

	day := t.days.Day(at)
	var (
		rec   school.AttendanceRecord
		event Event
	)
	err = t.store.WithDay(ctx, student.ID, day, func(d Day) error {
		latest, err := d.Latest(ctx)
		if err != nil {
			return err
		}
		switch {
		case latest == nil:
			event = Arrived
			rec, err = d.Insert(ctx, school.AttendanceRecord{
				StudentID:   student.ID,
				ClassRoomID: student.ClassRoomID,
				Date:        day,
				CheckIn:     at,
			})
		case latest.Open():
			if at.Before(latest.CheckIn) {
				return fmt.Errorf("scan at %s, checked in at %s: %w",
					at.Format(time.RFC3339), latest.CheckIn.Format(time.RFC3339), school.ErrOutOfOrder)
			}
			event = Left
			rec, err = d.CheckOut(ctx, latest.ID, at)
		default:
			return school.ErrAlreadyCompleted
		}
		return err
	})
	if err != nil {
		t.countFailure(err)
		return school.AttendanceRecord{}, Intent{}, err
	}

	if event == Arrived {
		metrics.Scans.WithLabelValues("check_in").Inc()
	} else {
		metrics.Scans.WithLabelValues("check_out").Inc()
	}
	t.log.Info("attendance scan", "admission_no", student.AdmissionNo, "event", string(event), "record", rec.ID)

	intent := Intent{
		Event:     event,
		Recipient: student.GuardianPhone(),
		Message:   t.message(student, event, at),
	}
	t.dispatch(ctx, intent)
	return rec, intent, nil
}

// List returns records newest day first, then latest check-in first.
func (t *Tracker) List(ctx context.Context, f Filter) ([]Entry, error) {
	if !f.Date.IsZero() {
		f.Date = t.days.Day(f.Date)
	}
	return t.store.List(ctx, f)
}

func (t *Tracker) message(s school.Student, event Event, at time.Time) string {
	local := at.In(t.days.Location())
	what := "arrived at"
	if event == Left {
		what = "left"
	}
	return fmt.Sprintf("Dear Parent, %s has %s the school on %s at %s.",
		s.FullName, what, local.Format("Jan 02, 2006"), local.Format("03:04 PM"))
}

// dispatch sends the notification without holding up the caller. The
// attendance change is already committed, so failures are only logged.
func (t *Tracker) dispatch(ctx context.Context, in Intent) {
	if !in.Deliverable() || t.notifier == nil {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return
	}
	base := context.WithoutCancel(ctx)
	t.spawn(func() {
		sendCtx, cancel := context.WithTimeout(base, t.notifyTimeout)
		defer cancel()
		if err := t.notifier.Send(sendCtx, in.Recipient, in.Message); err != nil {
			t.log.Warn("attendance notification failed", "to", in.Recipient, "event", string(in.Event), "error", err)
			metrics.Notifications.WithLabelValues("failed").Inc()
			return
		}
		metrics.Notifications.WithLabelValues("dispatched").Inc()
	})
}

func (t *Tracker) countFailure(err error) {
	switch {
	case errors.Is(err, school.ErrNotFound):
		metrics.Scans.WithLabelValues("not_found").Inc()
	case errors.Is(err, school.ErrAlreadyCompleted):
		metrics.Scans.WithLabelValues("already_completed").Inc()
	case errors.Is(err, school.ErrOutOfOrder):
		metrics.Scans.WithLabelValues("out_of_order").Inc()
	default:
		metrics.Scans.WithLabelValues("error").Inc()
	}
}
