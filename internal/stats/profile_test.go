package stats

import (
	"testing"
	"time"

	"rollcall/internal/model"
)

func TestBuildProfile(t *testing.T) {
	alice := model.Person{ID: "p1", FullName: "Alice"}
	meetings := []model.Meeting{
		{ID: "sat", Name: "Shabibeh", DisplayOrder: 2},
		{ID: "sun", Name: "Sunday Service", DisplayOrder: 1},
		{ID: "bible", Name: "Bible Study", DisplayOrder: 3},
	}
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	records := []model.Record{
		{ID: "r1", MeetingID: "sun", PersonID: "p1", Date: "2024-01-07", MarkedAt: at},
		{ID: "r2", MeetingID: "sun", PersonID: "p1", Date: "2024-01-14", MarkedAt: at},
		{ID: "r3", MeetingID: "sat", PersonID: "p1", Date: "2024-01-13", MarkedAt: at},
		{ID: "r4", MeetingID: "gone", PersonID: "p1", Date: "2024-01-15", MarkedAt: at},
		{ID: "r5", MeetingID: "sun", PersonID: "p2", Date: "2024-01-14", MarkedAt: at},
	}

	prof := BuildProfile(alice, meetings, records, "2024-01-16")

	if prof.TotalAttendances != 4 {
		t.Errorf("TotalAttendances = %d, want 4", prof.TotalAttendances)
	}
	if len(prof.Meetings) != 2 {
		t.Fatalf("got %d meeting stats, want 2", len(prof.Meetings))
	}
	sun, sat := prof.Meetings[0], prof.Meetings[1]
	if sun.Meeting.ID != "sun" || sat.Meeting.ID != "sat" {
		t.Fatalf("meetings not in display order: %s, %s", sun.Meeting.ID, sat.Meeting.ID)
	}
	if sun.TimesAttended != 2 || sun.LongestStreak != 2 || sun.CurrentStreak != 2 || sun.AttendanceRate != 100 {
		t.Errorf("sunday stat = %+v", sun)
	}
	// Saturday denominator starts at the Saturday record, not at the earlier Sunday one.
	if sat.AttendanceRate != 100 {
		t.Errorf("saturday rate = %d, want 100", sat.AttendanceRate)
	}

	wantHistory := []string{"r4", "r2", "r3", "r1"}
	if len(prof.History) != len(wantHistory) {
		t.Fatalf("history len = %d", len(prof.History))
	}
	for i, id := range wantHistory {
		if prof.History[i].ID != id {
			t.Errorf("history[%d] = %s, want %s", i, prof.History[i].ID, id)
		}
	}
	if prof.History[0].MeetingName != model.UnknownName {
		t.Errorf("vanished meeting name = %q", prof.History[0].MeetingName)
	}
}
