// Package dates turns human date expressions into the formats Harvest list
// filters expect.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Matches: "3d ago", "2w ago", "1mo ago", "12h ago"
var agoPattern = regexp.MustCompile(`^(\d+)\s*(mo|w|d|h)\s*ago$`)

// Parse resolves expr relative to now. It accepts "today", "yesterday",
// weekday names ("mon", "last friday"), "<n>{h,d,w,mo} ago", YYYY-MM-DD,
// YYYYMMDD and RFC3339. A bare weekday is its latest occurrence up to and
// including today; "last" excludes today.
func Parse(expr string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date expression")
	}
	input := strings.ToLower(raw)

	switch input {
	case "today":
		return startOfDay(now), nil
	case "yesterday":
		return startOfDay(now).AddDate(0, 0, -1), nil
	}

	if t, ok := parseWeekday(input, now); ok {
		return t, nil
	}

	if m := agoPattern.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return time.Time{}, fmt.Errorf("invalid relative date %q", raw)
		}
		return ago(now, n, m[2]), nil
	}

	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD, a weekday, yesterday or e.g. 2w ago", raw)
}

// Day formats expr as the ISO date used by from/to filters.
func Day(expr string, now time.Time) (string, error) {
	t, err := Parse(expr, now)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

// Timestamp formats expr as the UTC datetime used by updated_since.
func Timestamp(expr string, now time.Time) (string, error) {
	t, err := Parse(expr, now)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(time.RFC3339), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseWeekday(input string, now time.Time) (time.Time, bool) {
	last := false
	if rest, ok := strings.CutPrefix(input, "last "); ok {
		last, input = true, strings.TrimSpace(rest)
	}

	weekday, ok := weekdays[input]
	if !ok {
		return time.Time{}, false
	}

	today := startOfDay(now)
	back := (int(today.Weekday()) - int(weekday) + 7) % 7
	if last && back == 0 {
		back = 7
	}
	return today.AddDate(0, 0, -back), true
}

var weekdays = map[string]time.Weekday{
	"sun":       time.Sunday,
	"sunday":    time.Sunday,
	"mon":       time.Monday,
	"monday":    time.Monday,
	"tue":       time.Tuesday,
	"tues":      time.Tuesday,
	"tuesday":   time.Tuesday,
	"wed":       time.Wednesday,
	"wednesday": time.Wednesday,
	"thu":       time.Thursday,
	"thurs":     time.Thursday,
	"thursday":  time.Thursday,
	"fri":       time.Friday,
	"friday":    time.Friday,
	"sat":       time.Saturday,
	"saturday":  time.Saturday,
}

func ago(now time.Time, n int, unit string) time.Time {
	switch unit {
	case "mo":
		return now.AddDate(0, -n, 0)
	case "w":
		return now.AddDate(0, 0, -7*n)
	case "d":
		return now.AddDate(0, 0, -n)
	default:
		return now.Add(-time.Duration(n) * time.Hour)
	}
}
