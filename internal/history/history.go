// Package history reduces flat attendance rows into dashboard views.
package history

import (
	"sort"
	"time"

	"rollcall/internal/dates"
	"rollcall/internal/model"
	"rollcall/internal/stats"
)

// TopN caps the attendee ranking and the streak leaderboard.
const TopN = 15

// Row is an attendance record joined with display names.
type Row struct {
	RecordID    string    `json:"record_id"`
	MeetingID   string    `json:"meeting_id"`
	MeetingName string    `json:"meeting_name"`
	PersonID    string    `json:"person_id"`
	PersonName  string    `json:"person_name"`
	Date        string    `json:"date"`
	MarkedAt    time.Time `json:"marked_at"`
}

// Join attaches meeting and person names to records. Missing references get
// model.UnknownName.
func Join(records []model.Record, meetings []model.Meeting, people []model.Person) []Row {
	meetingNames := make(map[string]string, len(meetings))
	for _, m := range meetings {
		meetingNames[m.ID] = m.Name
	}
	personNames := make(map[string]string, len(people))
	for _, p := range people {
		personNames[p.ID] = p.FullName
	}

	rows := make([]Row, 0, len(records))
	for _, r := range records {
		row := Row{
			RecordID:    r.ID,
			MeetingID:   r.MeetingID,
			MeetingName: model.UnknownName,
			PersonID:    r.PersonID,
			PersonName:  model.UnknownName,
			Date:        r.Date,
			MarkedAt:    r.MarkedAt,
		}
		if n, ok := meetingNames[r.MeetingID]; ok {
			row.MeetingName = n
		}
		if n, ok := personNames[r.PersonID]; ok {
			row.PersonName = n
		}
		rows = append(rows, row)
	}
	return rows
}

// WeekPoint is one Monday-aligned bucket with a count per meeting id. Meetings
// without rows that week are absent from Counts.
type WeekPoint struct {
	WeekStart string         `json:"week_start"`
	Counts    map[string]int `json:"counts"`
}

// WeeklySeries buckets rows by week and meeting. Weeks are ascending and only
// weeks with at least one row are emitted.
func WeeklySeries(rows []Row) []WeekPoint {
	buckets := make(map[string]map[string]int)
	for _, r := range rows {
		week, err := dates.WeekStart(r.Date)
		if err != nil {
			continue
		}
		if buckets[week] == nil {
			buckets[week] = make(map[string]int)
		}
		buckets[week][r.MeetingID]++
	}

	weeks := make([]string, 0, len(buckets))
	for w := range buckets {
		weeks = append(weeks, w)
	}
	sort.Strings(weeks)

	series := make([]WeekPoint, 0, len(weeks))
	for _, w := range weeks {
		series = append(series, WeekPoint{WeekStart: w, Counts: buckets[w]})
	}
	return series
}

// MeetingTotal is the number of rows for one meeting.
type MeetingTotal struct {
	MeetingID   string `json:"meeting_id"`
	MeetingName string `json:"meeting_name"`
	Count       int    `json:"count"`
}

// MeetingTotals counts rows per meeting. Every meeting appears in display
// order, with zero when it has no rows; rows for unknown meetings follow in
// encounter order.
func MeetingTotals(meetings []model.Meeting, rows []Row) []MeetingTotal {
	ordered := make([]model.Meeting, len(meetings))
	copy(ordered, meetings)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].DisplayOrder < ordered[j].DisplayOrder })

	counts := make(map[string]int)
	var extra []string
	known := make(map[string]bool, len(ordered))
	for _, m := range ordered {
		known[m.ID] = true
	}
	for _, r := range rows {
		if !known[r.MeetingID] && counts[r.MeetingID] == 0 {
			extra = append(extra, r.MeetingID)
		}
		counts[r.MeetingID]++
	}

	out := make([]MeetingTotal, 0, len(ordered)+len(extra))
	for _, m := range ordered {
		out = append(out, MeetingTotal{MeetingID: m.ID, MeetingName: m.Name, Count: counts[m.ID]})
	}
	for _, id := range extra {
		out = append(out, MeetingTotal{MeetingID: id, MeetingName: model.UnknownName, Count: counts[id]})
	}
	return out
}

// AttendeeCount is the number of rows for one person.
type AttendeeCount struct {
	PersonID   string `json:"person_id"`
	PersonName string `json:"person_name"`
	Count      int    `json:"count"`
}

// TopAttendees ranks people by row count, keeping encounter order on ties,
// and returns at most TopN.
func TopAttendees(rows []Row) []AttendeeCount {
	out := countPeople(rows)
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}

// AllTimeForMeeting ranks every person who attended meetingID by count. It is
// not capped.
func AllTimeForMeeting(rows []Row, meetingID string) []AttendeeCount {
	filtered := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.MeetingID == meetingID {
			filtered = append(filtered, r)
		}
	}
	return countPeople(filtered)
}

func countPeople(rows []Row) []AttendeeCount {
	index := make(map[string]int)
	var out []AttendeeCount
	for _, r := range rows {
		i, ok := index[r.PersonID]
		if !ok {
			i = len(out)
			index[r.PersonID] = i
			out = append(out, AttendeeCount{PersonID: r.PersonID, PersonName: r.PersonName})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if out == nil {
		out = []AttendeeCount{}
	}
	return out
}

// StreakEntry is the longest weekly streak of one person at one meeting.
type StreakEntry struct {
	PersonID    string `json:"person_id"`
	PersonName  string `json:"person_name"`
	MeetingID   string `json:"meeting_id"`
	MeetingName string `json:"meeting_name"`
	Streak      int    `json:"streak"`
}

// StreakLeaderboard computes the longest streak per (person, meeting), keeps
// streaks of at least two and returns the TopN longest.
func StreakLeaderboard(rows []Row) []StreakEntry {
	type key struct{ person, meeting string }
	index := make(map[key]int)
	var groups []StreakEntry
	var groupDates [][]string
	for _, r := range rows {
		k := key{r.PersonID, r.MeetingID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, StreakEntry{
				PersonID:    r.PersonID,
				PersonName:  r.PersonName,
				MeetingID:   r.MeetingID,
				MeetingName: r.MeetingName,
			})
			groupDates = append(groupDates, nil)
		}
		groupDates[i] = append(groupDates[i], r.Date)
	}

	out := []StreakEntry{}
	for i, g := range groups {
		g.Streak = stats.LongestStreak(groupDates[i])
		if g.Streak >= 2 {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Streak > out[j].Streak })
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}

// LookupRow is one attendee of a single meeting date.
type LookupRow struct {
	PersonID   string    `json:"person_id"`
	PersonName string    `json:"person_name"`
	MarkedAt   time.Time `json:"marked_at"`
}

// DateLookup lists who attended meetingID on date, earliest mark first.
func DateLookup(rows []Row, meetingID, date string) []LookupRow {
	out := []LookupRow{}
	for _, r := range rows {
		if r.MeetingID == meetingID && r.Date == date {
			out = append(out, LookupRow{PersonID: r.PersonID, PersonName: r.PersonName, MarkedAt: r.MarkedAt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MarkedAt.Before(out[j].MarkedAt) })
	return out
}
