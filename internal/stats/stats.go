// Package stats computes streaks and attendance rates over the dates a person
// attended one meeting.
package stats

import (
	"math"
	"sort"
	"time"

	"rollcall/internal/dates"
)

const (
	weekGap = 7
	// A current streak is broken once the latest attendance is older than this.
	streakGrace = 14
)

// LongestStreak returns the longest run of attendances spaced exactly seven
// days apart. Unparsable dates are ignored.
func LongestStreak(ds []string) int {
	sorted := parseSorted(ds)
	if len(sorted) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if dates.DaysBetween(sorted[i-1], sorted[i]) == weekGap {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 1
	}
	return longest
}

// CurrentStreak counts back from the most recent attendance while the gaps
// stay at seven days. It is zero for unrestricted meetings and once the most
// recent attendance is more than two weeks before today.
func CurrentStreak(ds []string, req dates.Requirement, today string) int {
	if !req.Restricted() {
		return 0
	}
	sorted := parseSorted(ds)
	if len(sorted) == 0 {
		return 0
	}
	now, err := dates.Parse(today)
	if err != nil {
		return 0
	}
	last := len(sorted) - 1
	if dates.DaysBetween(sorted[last], now) > streakGrace {
		return 0
	}
	streak := 1
	for i := last; i > 0; i-- {
		if dates.DaysBetween(sorted[i-1], sorted[i]) != weekGap {
			break
		}
		streak++
	}
	return streak
}

// AttendanceRate is the percentage of the meeting's occurrences the person
// attended, counting occurrences from firstDate up to the later of today and
// the latest attendance. firstDate is the person's earliest record for this
// meeting. Unrestricted meetings report 0.
func AttendanceRate(ds []string, req dates.Requirement, firstDate, today string) int {
	if !req.Restricted() {
		return 0
	}
	sorted := parseSorted(ds)
	if len(sorted) == 0 {
		return 0
	}
	first, err := dates.Parse(firstDate)
	if err != nil {
		return 0
	}
	end, err := dates.Parse(today)
	if err != nil {
		return 0
	}
	if latest := sorted[len(sorted)-1]; latest.After(end) {
		end = latest
	}
	occurrences := CountOccurrences(first, end, req)
	if occurrences == 0 {
		return 0
	}
	return int(math.Round(float64(distinct(sorted)) / float64(occurrences) * 100))
}

// CountOccurrences counts the days between from and to inclusive that fall on
// the required weekday.
func CountOccurrences(from, to time.Time, req dates.Requirement) int {
	if !req.Restricted() {
		return 0
	}
	start := dates.NextOnOrAfter(from, req)
	if start.After(to) {
		return 0
	}
	return dates.DaysBetween(start, to)/weekGap + 1
}

// parseSorted parses and sorts ascending. Duplicates are kept; a zero-day gap
// simply breaks a streak.
func parseSorted(ds []string) []time.Time {
	out := make([]time.Time, 0, len(ds))
	for _, s := range ds {
		t, err := dates.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func distinct(sorted []time.Time) int {
	n := 0
	for i, t := range sorted {
		if i == 0 || !t.Equal(sorted[i-1]) {
			n++
		}
	}
	return n
}
