// Package dates holds the calendar arithmetic shared by every meeting-day
// consumer: local-date strings, day shifting, weekday requirements derived
// from meeting names and snapping a date onto a valid meeting day.
//
// Dates travel as "YYYY-MM-DD" strings. When parsed they become midnight UTC
// so that day arithmetic is exact and never crosses a DST boundary.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format of a calendar date.
const Layout = "2006-01-02"

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrWrongWeekday = errors.New("date falls on the wrong weekday")
)

// Today returns the current date on the wall clock of loc. A nil loc means
// time.Local. It never uses UTC unless loc is UTC.
func Today(loc *time.Location) string {
	return TodayAt(time.Now(), loc)
}

// TodayAt is Today for an explicit instant.
func TodayAt(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(Layout)
}

// Parse reads a calendar date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Format writes the calendar date of t, read in t's own location.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Shift moves a date by n days, crossing month and year boundaries.
func Shift(s string, days int) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(t.AddDate(0, 0, days)), nil
}

// DaysBetween returns b - a in whole days. Both must come from Parse.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// Requirement is the single weekday a meeting recurs on, or Unrestricted.
type Requirement int8

const (
	Unrestricted Requirement = -1
	Sunday       Requirement = Requirement(time.Sunday)
	Saturday     Requirement = Requirement(time.Saturday)
)

// Restricted reports whether the meeting is bound to one weekday.
func (r Requirement) Restricted() bool {
	return r >= 0
}

// Weekday is only meaningful when Restricted is true.
func (r Requirement) Weekday() time.Weekday {
	return time.Weekday(r)
}

func (r Requirement) String() string {
	if !r.Restricted() {
		return "unrestricted"
	}
	return r.Weekday().String()
}

// saturdayAlias is the name of the Saturday youth meeting.
const saturdayAlias = "shabibeh"

// RequiredWeekday derives the meeting day from the meeting name. Sunday is
// checked before Saturday.
func RequiredWeekday(meetingName string) Requirement {
	lower := strings.ToLower(meetingName)
	switch {
	case strings.Contains(lower, "sunday"):
		return Sunday
	case strings.Contains(lower, "saturday"), strings.Contains(lower, saturdayAlias):
		return Saturday
	default:
		return Unrestricted
	}
}

// SnapTime walks t backwards, never forwards, to the closest day that
// satisfies r.
func SnapTime(t time.Time, r Requirement) time.Time {
	if !r.Restricted() {
		return t
	}
	back := (int(t.Weekday()) - int(r.Weekday()) + 7) % 7
	return t.AddDate(0, 0, -back)
}

// Snap is SnapTime over date strings.
func Snap(s string, r Requirement) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(SnapTime(t, r)), nil
}

// NextOnOrAfter walks t forwards to the first day that satisfies r.
func NextOnOrAfter(t time.Time, r Requirement) time.Time {
	if !r.Restricted() {
		return t
	}
	ahead := (int(r.Weekday()) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, ahead)
}

// WeekStart returns the Monday of the week containing s.
func WeekStart(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	back := int(t.Weekday()) - 1
	if t.Weekday() == time.Sunday {
		back = 6
	}
	return Format(t.AddDate(0, 0, -back)), nil
}

// ValidateDay rejects a date that a day-constrained meeting cannot be held on.
func ValidateDay(s string, r Requirement) error {
	t, err := Parse(s)
	if err != nil {
		return err
	}
	if r.Restricted() && t.Weekday() != r.Weekday() {
		return fmt.Errorf("%w: this meeting only meets on %ss", ErrWrongWeekday, r.Weekday())
	}
	return nil
}
