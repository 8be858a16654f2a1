// Package export renders attendance history as CSV.
package export

import (
	"bufio"
	"io"
	"strings"
	"time"

	"rollcall/internal/history"
)

// Header is the first line of every export.
const Header = "date,meeting,person,marked_at"

// WriteCSV writes one line per row. Meeting and person names are always
// quoted; date and marked_at never need to be.
func WriteCSV(w io.Writer, rows []history.Row) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header + "\n"); err != nil {
		return err
	}
	for _, r := range rows {
		line := r.Date + "," +
			quote(r.MeetingName) + "," +
			quote(r.PersonName) + "," +
			r.MarkedAt.UTC().Format(time.RFC3339) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
