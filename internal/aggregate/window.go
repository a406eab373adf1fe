// Package aggregate folds fetched records into the grouped statistics used by
// practice and report endpoints.
package aggregate

import (
	"fmt"
	"strings"
	"time"
)

// Period is a named reporting window.
type Period string

const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// ParsePeriod resolves a period token. Empty and unknown tokens fall back.
func ParsePeriod(raw string, fallback Period) Period {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return p
	}
	return fallback
}

// Window is a closed time range [From, To].
type Window struct {
	Period Period
	From   time.Time
	To     time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// CacheKey identifies the window for cache keys at minute precision.
func (w Window) CacheKey() string {
	return fmt.Sprintf("%s:%d", w.Period, w.From.Truncate(time.Minute).Unix())
}

// ReportWindow resolves windows for progress and class reports, where a month
// is the last 30 days.
func ReportWindow(p Period, now time.Time) Window {
	if p == PeriodMonth {
		return Window{Period: p, From: now.AddDate(0, 0, -30), To: now}
	}
	return Window{Period: p, From: commonStart(p, now), To: now}
}

// PracticeWindow resolves windows for practice statistics, where a month starts
// on the first day of the current calendar month.
func PracticeWindow(p Period, now time.Time) Window {
	if p == PeriodMonth {
		return Window{Period: p, From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), To: now}
	}
	return Window{Period: p, From: commonStart(p, now), To: now}
}

func commonStart(p Period, now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodQuarter:
		return now.AddDate(0, 0, -90)
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return now.AddDate(0, 0, -7)
	}
}
