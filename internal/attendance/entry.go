package attendance

import (
	"errors"
	"fmt"
	"time"

	"rollcall/internal/model"
)

var (
	// ErrDuplicate means the (meeting, person, date) triple is already recorded.
	ErrDuplicate = errors.New("attendance already recorded")
	ErrNotFound  = errors.New("attendance entry not found")
)

// EntryState tells a locally created entry apart from one the store has
// confirmed.
type EntryState int

const (
	// Pending entries carry a temporary id until the insert resolves.
	Pending EntryState = iota
	// Confirmed entries carry the record id assigned by the store.
	Confirmed
)

func (s EntryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("EntryState(%d)", int(s))
	}
}

func (s EntryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *EntryState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*s = Pending
	case "confirmed":
		*s = Confirmed
	default:
		return fmt.Errorf("unknown entry state %q", b)
	}
	return nil
}

// Entry is an attendance record joined with its person.
type Entry struct {
	State     EntryState   `json:"state"`
	ID        string       `json:"id"`
	MeetingID string       `json:"meeting_id"`
	PersonID  string       `json:"person_id"`
	Date      string       `json:"date"`
	MarkedAt  time.Time    `json:"marked_at"`
	Person    model.Person `json:"person"`

	// confirmedGen is the reconcile generation current when a local insert
	// was confirmed.
	confirmedGen uint64
}

// Record returns the underlying attendance record.
func (e Entry) Record() model.Record {
	return model.Record{ID: e.ID, MeetingID: e.MeetingID, PersonID: e.PersonID, Date: e.Date, MarkedAt: e.MarkedAt}
}

// MarkOutcome is the result of Session.Mark.
type MarkOutcome int

const (
	MarkSuccess MarkOutcome = iota
	// MarkDuplicate means the person was already recorded; nothing new was marked.
	MarkDuplicate
	MarkFailure
)

func (o MarkOutcome) String() string {
	switch o {
	case MarkSuccess:
		return "success"
	case MarkDuplicate:
		return "duplicate"
	case MarkFailure:
		return "failure"
	default:
		return fmt.Sprintf("MarkOutcome(%d)", int(o))
	}
}

func (o MarkOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
