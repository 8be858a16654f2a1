package stats

import (
	"sort"

	"rollcall/internal/model"
)

// MeetingStat summarises one person's attendance at one meeting.
type MeetingStat struct {
	Meeting        model.Meeting `json:"meeting"`
	TimesAttended  int           `json:"times_attended"`
	LongestStreak  int           `json:"longest_streak"`
	CurrentStreak  int           `json:"current_streak"`
	AttendanceRate int           `json:"attendance_rate"`
}

// HistoryRow is one past attendance, newest first in a Profile.
type HistoryRow struct {
	ID          string `json:"id"`
	MeetingID   string `json:"meeting_id"`
	MeetingName string `json:"meeting_name"`
	Date        string `json:"date"`
}

// Profile is the read model behind a person's page.
type Profile struct {
	Person           model.Person  `json:"person"`
	TotalAttendances int           `json:"total_attendances"`
	Meetings         []MeetingStat `json:"meetings"`
	History          []HistoryRow  `json:"history"`
}

// BuildProfile computes per-meeting stats in display order, skipping meetings
// the person never attended. Records that do not belong to the person are
// ignored; records for meetings that no longer exist only show up in History
// under model.UnknownName.
func BuildProfile(p model.Person, meetings []model.Meeting, records []model.Record, today string) Profile {
	own := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.PersonID == p.ID {
			own = append(own, r)
		}
	}

	ordered := make([]model.Meeting, len(meetings))
	copy(ordered, meetings)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].DisplayOrder < ordered[j].DisplayOrder })

	byMeeting := make(map[string][]string)
	for _, r := range own {
		byMeeting[r.MeetingID] = append(byMeeting[r.MeetingID], r.Date)
	}

	prof := Profile{
		Person:           p,
		TotalAttendances: len(own),
		Meetings:         []MeetingStat{},
		History:          make([]HistoryRow, 0, len(own)),
	}

	names := make(map[string]string, len(ordered))
	for _, m := range ordered {
		names[m.ID] = m.Name
		ds := byMeeting[m.ID]
		if len(ds) == 0 {
			continue
		}
		req := m.Requirement()
		prof.Meetings = append(prof.Meetings, MeetingStat{
			Meeting:        m,
			TimesAttended:  len(ds),
			LongestStreak:  LongestStreak(ds),
			CurrentStreak:  CurrentStreak(ds, req, today),
			AttendanceRate: AttendanceRate(ds, req, earliest(ds), today),
		})
	}

	sort.SliceStable(own, func(i, j int) bool {
		if own[i].Date != own[j].Date {
			return own[i].Date > own[j].Date
		}
		return own[i].MarkedAt.After(own[j].MarkedAt)
	})
	for _, r := range own {
		name, ok := names[r.MeetingID]
		if !ok {
			name = model.UnknownName
		}
		prof.History = append(prof.History, HistoryRow{
			ID:          r.ID,
			MeetingID:   r.MeetingID,
			MeetingName: name,
			Date:        r.Date,
		})
	}
	return prof
}

// earliest relies on YYYY-MM-DD sorting lexically.
func earliest(ds []string) string {
	min := ds[0]
	for _, d := range ds[1:] {
		if d < min {
			min = d
		}
	}
	return min
}
