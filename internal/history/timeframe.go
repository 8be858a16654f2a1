package history

import (
	"errors"
	"fmt"

	"rollcall/internal/dates"
)

// Timeframe bounds the rows considered by the dashboard.
type Timeframe string

const (
	Last4Weeks  Timeframe = "4w"
	Last12Weeks Timeframe = "12w"
	Last6Months Timeframe = "6m"
	LastYear    Timeframe = "1y"
	AllTime     Timeframe = "all"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// ParseTimeframe accepts the wire names. An empty string means Last12Weeks.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case "":
		return Last12Weeks, nil
	case Last4Weeks, Last12Weeks, Last6Months, LastYear, AllTime:
		return tf, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownTimeframe, s)
	}
}

// Since returns the inclusive lower date bound relative to today. ok is false
// for AllTime.
func (tf Timeframe) Since(today string) (since string, ok bool, err error) {
	t, err := dates.Parse(today)
	if err != nil {
		return "", false, err
	}
	switch tf {
	case Last4Weeks:
		t = t.AddDate(0, 0, -28)
	case Last12Weeks:
		t = t.AddDate(0, 0, -84)
	case Last6Months:
		t = t.AddDate(0, -6, 0)
	case LastYear:
		t = t.AddDate(-1, 0, 0)
	default:
		return "", false, nil
	}
	return dates.Format(t), true, nil
}

// Filter keeps rows dated on or after the timeframe's lower bound.
func Filter(rows []Row, tf Timeframe, today string) ([]Row, error) {
	since, ok, err := tf.Since(today)
	if err != nil {
		return nil, err
	}
	if !ok {
		return rows, nil
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Date >= since {
			out = append(out, r)
		}
	}
	return out, nil
}
