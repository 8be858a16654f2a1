package history

import (
	"fmt"
	"testing"
	"time"

	"rollcall/internal/model"
)

func row(meeting, person, date string) Row {
	return Row{MeetingID: meeting, MeetingName: meeting, PersonID: person, PersonName: person, Date: date}
}

func TestWeeklySeriesIsSparse(t *testing.T) {
	rows := []Row{
		row("A", "p1", "2024-01-08"),
		row("A", "p2", "2024-01-14"), // Sunday closes the week of Monday the 8th
		row("B", "p1", "2024-01-17"),
	}

	got := WeeklySeries(rows)
	if len(got) != 2 {
		t.Fatalf("got %d points, want 2: %+v", len(got), got)
	}
	if got[0].WeekStart != "2024-01-08" || got[0].Counts["A"] != 2 {
		t.Errorf("first point = %+v", got[0])
	}
	if _, ok := got[0].Counts["B"]; ok {
		t.Errorf("first week should omit B: %+v", got[0].Counts)
	}
	if got[1].WeekStart != "2024-01-15" || got[1].Counts["B"] != 1 {
		t.Errorf("second point = %+v", got[1])
	}
	if _, ok := got[1].Counts["A"]; ok {
		t.Errorf("second week should omit A: %+v", got[1].Counts)
	}
}

func TestWeeklySeriesAscending(t *testing.T) {
	rows := []Row{
		row("A", "p1", "2024-03-04"),
		row("A", "p1", "2023-12-31"),
		row("A", "p1", "2024-01-22"),
	}
	got := WeeklySeries(rows)
	want := []string{"2023-12-25", "2024-01-22", "2024-03-04"}
	for i, w := range want {
		if got[i].WeekStart != w {
			t.Errorf("point %d = %s, want %s", i, got[i].WeekStart, w)
		}
	}
}

func TestMeetingTotals(t *testing.T) {
	meetings := []model.Meeting{
		{ID: "B", Name: "Bible Study", DisplayOrder: 2},
		{ID: "A", Name: "Sunday Service", DisplayOrder: 1},
	}
	rows := []Row{row("A", "p1", "2024-01-07"), row("A", "p2", "2024-01-07"), row("X", "p1", "2024-01-07")}

	got := MeetingTotals(meetings, rows)
	want := []MeetingTotal{
		{MeetingID: "A", MeetingName: "Sunday Service", Count: 2},
		{MeetingID: "B", MeetingName: "Bible Study", Count: 0},
		{MeetingID: "X", MeetingName: model.UnknownName, Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("total %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopAttendeesStableAndCapped(t *testing.T) {
	var rows []Row
	// 20 people with one row each, then p5 gets a second row.
	for i := 0; i < 20; i++ {
		rows = append(rows, row("A", fmt.Sprintf("p%02d", i), "2024-01-07"))
	}
	rows = append(rows, row("A", "p05", "2024-01-14"))

	got := TopAttendees(rows)
	if len(got) != TopN {
		t.Fatalf("len = %d, want %d", len(got), TopN)
	}
	if got[0].PersonID != "p05" || got[0].Count != 2 {
		t.Errorf("leader = %+v", got[0])
	}
	// Ties keep encounter order.
	if got[1].PersonID != "p00" || got[2].PersonID != "p01" || got[14].PersonID != "p14" {
		t.Errorf("tie order broken: %s %s %s", got[1].PersonID, got[2].PersonID, got[14].PersonID)
	}
}

func TestStreakLeaderboard(t *testing.T) {
	rows := []Row{
		row("A", "p1", "2024-01-07"), row("A", "p1", "2024-01-14"), row("A", "p1", "2024-01-21"),
		row("A", "p2", "2024-01-07"), row("A", "p2", "2024-01-14"),
		row("B", "p1", "2024-01-06"),
		row("A", "p3", "2024-01-07"), row("A", "p3", "2024-01-28"),
	}
	got := StreakLeaderboard(rows)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].PersonID != "p1" || got[0].MeetingID != "A" || got[0].Streak != 3 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].PersonID != "p2" || got[1].Streak != 2 {
		t.Errorf("second = %+v", got[1])
	}
}

func TestDateLookupAndAllTime(t *testing.T) {
	base := time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	rows := []Row{
		{MeetingID: "A", PersonID: "late", PersonName: "Late", Date: "2024-01-07", MarkedAt: base.Add(time.Hour)},
		{MeetingID: "A", PersonID: "early", PersonName: "Early", Date: "2024-01-07", MarkedAt: base},
		{MeetingID: "A", PersonID: "early", PersonName: "Early", Date: "2024-01-14", MarkedAt: base},
		{MeetingID: "B", PersonID: "late", PersonName: "Late", Date: "2024-01-07", MarkedAt: base},
	}

	lookup := DateLookup(rows, "A", "2024-01-07")
	if len(lookup) != 2 || lookup[0].PersonName != "Early" || lookup[1].PersonName != "Late" {
		t.Errorf("lookup = %+v", lookup)
	}

	all := AllTimeForMeeting(rows, "A")
	if len(all) != 2 || all[0].PersonID != "early" || all[0].Count != 2 || all[1].Count != 1 {
		t.Errorf("all time = %+v", all)
	}
	if got := AllTimeForMeeting(rows, "none"); len(got) != 0 {
		t.Errorf("unknown meeting = %+v", got)
	}
}

func TestJoinUnknownNames(t *testing.T) {
	rows := Join(
		[]model.Record{{ID: "r1", MeetingID: "gone", PersonID: "ghost", Date: "2024-01-07"}},
		nil, nil,
	)
	if rows[0].MeetingName != model.UnknownName || rows[0].PersonName != model.UnknownName {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestTimeframes(t *testing.T) {
	tests := []struct {
		tf    Timeframe
		since string
		ok    bool
	}{
		{Last4Weeks, "2024-02-02", true},
		{Last12Weeks, "2023-12-08", true},
		{Last6Months, "2023-09-01", true},
		{LastYear, "2023-03-01", true},
		{AllTime, "", false},
	}
	for _, tt := range tests {
		since, ok, err := tt.tf.Since("2024-03-01")
		if err != nil {
			t.Fatal(err)
		}
		if since != tt.since || ok != tt.ok {
			t.Errorf("%s: since = %q ok = %v, want %q %v", tt.tf, since, ok, tt.since, tt.ok)
		}
	}

	if _, err := ParseTimeframe("2w"); err == nil {
		t.Error("expected error for unknown timeframe")
	}
	if tf, _ := ParseTimeframe(""); tf != Last12Weeks {
		t.Errorf("default timeframe = %s", tf)
	}

	rows := []Row{row("A", "p", "2024-02-01"), row("A", "p", "2024-02-02")}
	got, _ := Filter(rows, Last4Weeks, "2024-03-01")
	if len(got) != 1 || got[0].Date != "2024-02-02" {
		t.Errorf("filter = %+v", got)
	}
}
