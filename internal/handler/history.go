package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/export"
	"rollcall/internal/history"
)

func (h *Handler) dashboard(c *gin.Context) {
	tf, err := history.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		fail(c, err)
		return
	}
	d, err := h.history.Dashboard(c.Request.Context(), tf)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) lookup(c *gin.Context) {
	meetingID, date := c.Query("meeting_id"), c.Query("date")
	if meetingID == "" || date == "" {
		badRequest(c, errors.New("meeting_id and date are required"))
		return
	}
	rows, err := h.history.Lookup(c.Request.Context(), meetingID, date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meeting_id": meetingID, "date": date, "rows": rows})
}

func (h *Handler) allTime(c *gin.Context) {
	meetingID := c.Query("meeting_id")
	if meetingID == "" {
		badRequest(c, errors.New("meeting_id is required"))
		return
	}
	counts, err := h.history.AllTime(c.Request.Context(), meetingID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meeting_id": meetingID, "attendees": counts})
}

func (h *Handler) exportCSV(c *gin.Context) {
	rows, _, err := h.history.Rows(c.Request.Context(), history.RecordFilter{})
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, rows); err != nil {
		// Headers are gone already; all that is left is to log.
		slog.Error("csv export failed", "error", err)
	}
}
