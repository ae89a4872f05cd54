package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolms/internal/auth"
	"schoolms/internal/marks"
)

func (h *Handler) importMarks(c *gin.Context) {
	examID, classroomID, ok := examClassParams(c)
	if !ok {
		return
	}
	claims, _ := auth.ClaimsFrom(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	defer file.Close()

	actor := marks.Actor{TeacherID: claims.TeacherID, Admin: claims.Admin()}
	report, err := h.marks.IngestScores(c.Request.Context(), examID, classroomID, file, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) marksTemplate(c *gin.Context) {
	examID, classroomID, ok := examClassParams(c)
	if !ok {
		return
	}
	generate := h.marks.GenerateTemplate
	if c.Query("format") == "xlsx" {
		generate = h.marks.GenerateTemplateXLSX
	}
	tpl, err := generate(c.Request.Context(), examID, classroomID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tpl.Filename))
	c.Data(http.StatusOK, tpl.ContentType, tpl.Data)
}

func (h *Handler) results(c *gin.Context) {
	examID, classroomID, ok := examClassParams(c)
	if !ok {
		return
	}
	sheet, err := h.marks.Results(c.Request.Context(), examID, classroomID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func examClassParams(c *gin.Context) (int64, int64, bool) {
	examID, err := strconv.ParseInt(c.Param("examID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam id"})
		return 0, 0, false
	}
	classroomID, err := strconv.ParseInt(c.Param("classroomID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid classroom id"})
		return 0, 0, false
	}
	return examID, classroomID, true
}
