package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"schoolms/internal/attendance"
)

type scanRequest struct {
	AdmissionNo string     `json:"admission_no" binding:"required"`
	ScannedAt   *time.Time `json:"scanned_at"`
}

func (h *Handler) recordScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at := h.now()
	if req.ScannedAt != nil {
		at = *req.ScannedAt
	}

	rec, intent, err := h.att.RecordScan(c.Request.Context(), req.AdmissionNo, at)
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := http.StatusOK
	if intent.Event == attendance.Arrived {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"record": rec, "event": intent.Event})
}

func (h *Handler) listAttendance(c *gin.Context) {
	var f attendance.Filter
	if v := c.Query("classroom_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid classroom_id"})
			return
		}
		f.ClassRoomID = id
	}
	if v := c.Query("date"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		f.Date = d
	}
	f.Limit, f.Offset = 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}

	records, err := h.att.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []attendance.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
