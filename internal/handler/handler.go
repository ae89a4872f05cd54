// Package handler exposes attendance and marks over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolms/internal/attendance"
	"schoolms/internal/marks"
	"schoolms/internal/school"
)

// Attendance is the tracker as used by the handlers.
type Attendance interface {
	RecordScan(ctx context.Context, admissionNo string, at time.Time) (school.AttendanceRecord, attendance.Intent, error)
	List(ctx context.Context, f attendance.Filter) ([]attendance.Entry, error)
}

// Marks is the ingestion pipeline as used by the handlers.
type Marks interface {
	IngestScores(ctx context.Context, examID, classroomID int64, file io.Reader, actor marks.Actor) (marks.Report, error)
	GenerateTemplate(ctx context.Context, examID, classroomID int64) (marks.Template, error)
	GenerateTemplateXLSX(ctx context.Context, examID, classroomID int64) (marks.Template, error)
	Results(ctx context.Context, examID, classroomID int64) (marks.ResultSheet, error)
}

// Handler holds the services behind the v1 API.
type Handler struct {
	att       Attendance
	marks     Marks
	loc       *time.Location
	maxUpload int64
	log       *slog.Logger
	now       func() time.Time
}

// New creates the handlers. Dates in query strings are read in loc.
func New(att Attendance, m Marks, loc *time.Location, maxUpload int64, log *slog.Logger) *Handler {
	return &Handler{att: att, marks: m, loc: loc, maxUpload: maxUpload, log: log, now: time.Now}
}

// Register mounts the routes. scanner guards badge scans, staff guards the
// rest.
func (h *Handler) Register(v1 *gin.RouterGroup, scanner, staff gin.HandlerFunc) {
	v1.POST("/attendance/scans", scanner, h.recordScan)
	v1.GET("/attendance", staff, h.listAttendance)

	exam := v1.Group("/exams/:examID/classrooms/:classroomID", staff)
	exam.POST("/marks/import", h.importMarks)
	exam.GET("/marks/template", h.marksTemplate)
	exam.GET("/results", h.results)
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a 500 without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, school.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, school.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, school.ErrEmptyInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, school.ErrUnreadableFile):
		status = http.StatusBadRequest
	case errors.Is(err, school.ErrAlreadyCompleted), errors.Is(err, school.ErrOutOfOrder):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
