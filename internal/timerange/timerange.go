// Package timerange parses the natural-language time expressions accepted by
// search and recall into concrete UTC epoch bounds.
package timerange

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

// Range is an inclusive [Start, End) window in UTC epoch seconds.
type Range struct {
	Start int64
	End   int64
}

var relativeN = regexp.MustCompile(`^last-(\d+)-(day|days|week|weeks|month|months)$`)

// Parse converts a time expression token into a Range anchored at now.
// All arithmetic is performed in UTC.
func Parse(token string, now time.Time) (Range, error) {
	now = now.UTC()
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.ReplaceAll(token, " ", "-")
	token = strings.TrimPrefix(token, "past-")

	switch token {
	case "today":
		start := midnight(now)
		return Range{Start: start.Unix(), End: now.Unix()}, nil
	case "yesterday":
		end := midnight(now)
		start := end.AddDate(0, 0, -1)
		return Range{Start: start.Unix(), End: end.Unix()}, nil
	case "this-week":
		start := startOfISOWeek(now)
		return Range{Start: start.Unix(), End: now.Unix()}, nil
	case "last-week":
		end := startOfISOWeek(now)
		start := end.AddDate(0, 0, -7)
		return Range{Start: start.Unix(), End: end.Unix()}, nil
	case "last-month":
		start := addMonths(midnight(now), -1)
		return Range{Start: start.Unix(), End: now.Unix()}, nil
	case "this-quarter":
		start := startOfQuarter(now)
		return Range{Start: start.Unix(), End: now.Unix()}, nil
	}

	if m := relativeN.FindStringSubmatch(token); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Range{}, merrors.TimeExpression(token)
		}
		unit := m[2]
		var start time.Time
		switch {
		case strings.HasPrefix(unit, "day"):
			start = now.AddDate(0, 0, -n)
		case strings.HasPrefix(unit, "week"):
			start = now.AddDate(0, 0, -7*n)
		case strings.HasPrefix(unit, "month"):
			start = addMonths(midnight(now), -n)
		default:
			return Range{}, merrors.TimeExpression(token)
		}
		return Range{Start: start.Unix(), End: now.Unix()}, nil
	}

	if r, ok := parseISORange(token); ok {
		return r, nil
	}

	return Range{}, merrors.TimeExpression(token)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfISOWeek returns midnight UTC of the Monday starting t's ISO week.
func startOfISOWeek(t time.Time) time.Time {
	t = midnight(t)
	weekday := int(t.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	return t.AddDate(0, 0, -(weekday - 1))
}

func startOfQuarter(t time.Time) time.Time {
	quarterStartMonth := ((int(t.Month())-1)/3)*3 + 1
	return time.Date(t.Year(), time.Month(quarterStartMonth), 1, 0, 0, 0, 0, time.UTC)
}

func addMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// parseISORange accepts "YYYY-MM-DD..YYYY-MM-DD" or a single "YYYY-MM-DD" day.
func parseISORange(token string) (Range, bool) {
	parts := strings.SplitN(token, "..", 2)
	layout := "2006-01-02"
	if len(parts) == 2 {
		start, err1 := time.Parse(layout, parts[0])
		end, err2 := time.Parse(layout, parts[1])
		if err1 != nil || err2 != nil {
			return Range{}, false
		}
		return Range{Start: start.UTC().Unix(), End: end.UTC().Unix()}, true
	}
	day, err := time.Parse(layout, token)
	if err != nil {
		return Range{}, false
	}
	start := day.UTC()
	return Range{Start: start.Unix(), End: start.AddDate(0, 0, 1).Unix()}, true
}
