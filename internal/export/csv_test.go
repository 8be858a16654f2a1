package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"rollcall/internal/history"
)

func TestWriteCSV(t *testing.T) {
	marked := time.Date(2024, 1, 7, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	rows := []history.Row{
		{Date: "2024-01-07", MeetingName: "Sunday Service", PersonName: "Alice", MarkedAt: marked},
		{Date: "2024-01-07", MeetingName: "Sunday, Main", PersonName: `Bob "Bobby" Lee`, MarkedAt: marked},
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, rows); err != nil {
		t.Fatal(err)
	}

	want := "date,meeting,person,marked_at\n" +
		"2024-01-07,\"Sunday Service\",\"Alice\",2024-01-07T14:30:00Z\n" +
		"2024-01-07,\"Sunday, Main\",\"Bob \"\"Bobby\"\" Lee\",2024-01-07T14:30:00Z\n"
	if sb.String() != want {
		t.Errorf("got\n%s\nwant\n%s", sb.String(), want)
	}

	// The output must read back as the same fields.
	records, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if got := records[2][2]; got != `Bob "Bobby" Lee` {
		t.Errorf("person read back as %q", got)
	}
	if got := records[2][1]; got != "Sunday, Main" {
		t.Errorf("meeting read back as %q", got)
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var sb strings.Builder
	if err := WriteCSV(&sb, nil); err != nil {
		t.Fatal(err)
	}
	if sb.String() != Header+"\n" {
		t.Errorf("got %q", sb.String())
	}
}
