package analytics

import (
	"strings"
	"time"
)

// Period selects the aggregation window.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod is lenient: unknown values become PeriodAll.
func ParsePeriod(s string) Period {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodWeek, PeriodMonth:
		return p
	default:
		return PeriodAll
	}
}

// Label returns the human readable period name.
func (p Period) Label() string {
	switch p {
	case PeriodWeek:
		return "This Week"
	case PeriodMonth:
		return "This Month"
	default:
		return "All Time"
	}
}

// DateRange is an inclusive [Start, End] interval.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// DateRangeFor computes the window for p around now, in now's location.
//
// Weeks start on Monday. Week and month ranges end on the last nanosecond of
// their final day. PeriodAll and unknown values span the Unix epoch to now.
func DateRangeFor(p Period, now time.Time) DateRange {
	loc := now.Location()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch p {
	case PeriodWeek:
		offset := (int(now.Weekday()) + 6) % 7
		start := midnight.AddDate(0, 0, -offset)
		return DateRange{Start: start, End: start.AddDate(0, 0, 7).Add(-time.Nanosecond)}
	case PeriodMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return DateRange{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
	default:
		return DateRange{Start: time.Unix(0, 0).In(loc), End: now}
	}
}
