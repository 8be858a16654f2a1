package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/dates"
	"rollcall/internal/model"
	"rollcall/internal/roster"
)

func (h *Handler) listMeetings(c *gin.Context) {
	meetings, err := h.history.Meetings(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	type meetingView struct {
		model.Meeting
		Weekday string `json:"weekday"`
	}
	out := make([]meetingView, len(meetings))
	for i, m := range meetings {
		out[i] = meetingView{Meeting: m, Weekday: m.Requirement().String()}
	}
	c.JSON(http.StatusOK, gin.H{"meetings": out})
}

func (h *Handler) defaultDate(c *gin.Context) {
	date, err := h.history.DefaultDate(c.Request.Context(), c.Param("meetingID"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date})
}

// session resolves the meeting date in the path. Dates a day-bound meeting
// does not meet on are rejected.
func (h *Handler) session(c *gin.Context) (*attendance.Session, bool) {
	ctx := c.Request.Context()
	meeting, err := h.history.Meeting(ctx, c.Param("meetingID"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	day, err := dates.Parse(c.Param("date"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	date := dates.Format(day)
	if err := dates.ValidateDay(date, meeting.Requirement()); err != nil {
		fail(c, err)
		return nil, false
	}
	s, err := h.hub.Session(ctx, meeting.ID, date)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) getSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) search(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	results := h.roster.Engine().Search(c.Query("q"), s.MarkedSet())
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type markRequest struct {
	PersonID string `json:"person_id"`
	// FullName and Notes add a new person and mark them in one step.
	FullName string `json:"full_name"`
	Notes    string `json:"notes"`
}

func (h *Handler) mark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		person model.Person
		err    error
	)
	switch {
	case req.PersonID != "":
		var found bool
		if person, found = h.roster.Engine().Lookup(req.PersonID); !found {
			person, err = h.roster.Get(ctx, req.PersonID)
		}
	case req.FullName != "":
		person, err = h.roster.Create(ctx, roster.Input{FullName: req.FullName, Notes: req.Notes})
	default:
		badRequest(c, errors.New("person_id or full_name is required"))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	outcome, err := s.Mark(ctx, person)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if outcome == attendance.MarkSuccess {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"outcome": outcome, "person": person, "session": s.Snapshot()})
}

func (h *Handler) remove(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Remove(c.Param("entryID")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) undo(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	undone := s.Undo()
	c.JSON(http.StatusOK, gin.H{"undone": undone, "session": s.Snapshot()})
}

func (h *Handler) dismissUndo(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.DismissUndo()
	c.JSON(http.StatusOK, s.Snapshot())
}
