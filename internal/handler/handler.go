// Package handler exposes the attendance API over gin.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/dates"
	"rollcall/internal/history"
	"rollcall/internal/roster"
	"rollcall/internal/settings"
)

// RecordRemover deletes past attendance outside any open session.
type RecordRemover interface {
	DeletePersonRecord(ctx context.Context, personID, recordID string) error
}

// Handler wires the services to routes.
type Handler struct {
	gate     *auth.Gate
	tokens   *auth.Tokens
	hub      *attendance.Hub
	records  RecordRemover
	roster   *roster.Service
	history  *history.Service
	settings *settings.Settings
}

// New builds a handler.
func New(gate *auth.Gate, tokens *auth.Tokens, hub *attendance.Hub, records RecordRemover, r *roster.Service, h *history.Service, s *settings.Settings) *Handler {
	return &Handler{gate: gate, tokens: tokens, hub: hub, records: records, roster: r, history: h, settings: s}
}

// Register mounts every /v1 route on r. Everything except login and refresh
// requires a session token; authed runs after the token is verified.
func (h *Handler) Register(r gin.IRouter, authed ...gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.login)
	v1.POST("/auth/refresh", h.refresh)

	api := v1.Group("", append([]gin.HandlerFunc{auth.RequireSession(h.tokens)}, authed...)...)

	api.GET("/meetings", h.listMeetings)
	api.GET("/meetings/:meetingID/default-date", h.defaultDate)

	sess := api.Group("/meetings/:meetingID/sessions/:date")
	sess.GET("", h.getSession)
	sess.GET("/search", h.search)
	sess.POST("/marks", h.mark)
	sess.DELETE("/marks/:entryID", h.remove)
	sess.POST("/undo", h.undo)
	sess.POST("/undo/dismiss", h.dismissUndo)

	api.GET("/people", h.listPeople)
	api.POST("/people", h.createPerson)
	api.POST("/people/import", h.importPeople)
	api.PUT("/people/:personID", h.updatePerson)
	api.DELETE("/people/:personID", h.deletePerson)
	api.GET("/people/:personID/profile", h.profile)
	api.DELETE("/people/:personID/records/:recordID", h.deleteRecord)

	api.GET("/history/dashboard", h.dashboard)
	api.GET("/history/lookup", h.lookup)
	api.GET("/history/all-time", h.allTime)
	api.GET("/export.csv", h.exportCSV)

	api.GET("/settings", h.allSettings)
	api.GET("/settings/:key", h.getSetting)
	api.PUT("/settings/:key", h.putSetting)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// fail maps domain errors onto status codes. Anything unrecognised is a 500
// with the cause kept out of the response.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrInvalidKey), errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, dates.ErrWrongWeekday),
		errors.Is(err, dates.ErrInvalidDate),
		errors.Is(err, roster.ErrEmptyName),
		errors.Is(err, history.ErrUnknownTimeframe),
		errors.Is(err, settings.ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, roster.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, attendance.ErrNotFound),
		errors.Is(err, roster.ErrNotFound),
		errors.Is(err, history.ErrUnknownMeeting),
		errors.Is(err, settings.ErrUnknownKey):
		status = http.StatusNotFound
	}

	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		slog.Error("request error", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
