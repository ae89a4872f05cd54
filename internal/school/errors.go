package school

import "errors"

// Whole-operation failures. They are returned before anything is written.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrEmptyInput       = errors.New("nothing to process")
	ErrUnreadableFile   = errors.New("unreadable file")
	ErrAlreadyCompleted = errors.New("attendance already completed today")
	ErrOutOfOrder       = errors.New("scan is earlier than check-in")
)
