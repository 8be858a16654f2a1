package model

import (
	"time"

	"rollcall/internal/dates"
)

// Person is one member of the roster.
type Person struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Meeting is a recurring event category.
type Meeting struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

// Requirement derives the weekday the meeting recurs on from its name.
func (m Meeting) Requirement() dates.Requirement {
	return dates.RequiredWeekday(m.Name)
}

// Record is one fact that a person attended a meeting on a date.
type Record struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	PersonID  string    `json:"person_id"`
	Date      string    `json:"date"`
	MarkedAt  time.Time `json:"marked_at"`
}

// UnknownName is shown when a record points at a person or meeting that no
// longer exists.
const UnknownName = "Unknown"
