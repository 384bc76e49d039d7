// Package calendar works with whole calendar days in a fixed location.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"renthaus/internal/models"
)

var ErrInvalidRange = errors.New("start date is after end date")

// ParseDay accepts YYYY-MM-DD or an RFC3339 timestamp and returns midnight of
// that calendar day in loc. Timestamps are converted to loc first.
func ParseDay(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("date is required")
	}

	if t, err := time.ParseInLocation(models.DateLayout, raw, loc); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", raw)
	}
	return Midnight(t.In(loc)), nil
}

// Midnight truncates t to the start of its day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Expand lists every day of [start, end] inclusive, formatted YYYY-MM-DD.
// Stepping uses AddDate so DST changes never skip or repeat a day.
func Expand(start, end time.Time) ([]string, error) {
	start, end = Midnight(start), Midnight(end)
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	days := make([]string, 0, DayCount(start, end))
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(models.DateLayout))
	}
	return days, nil
}

// DayCount returns the number of days in [start, end] inclusive, or 0 when
// start is after end.
func DayCount(start, end time.Time) int {
	s := Midnight(start)
	e := Midnight(end)
	if s.After(e) {
		return 0
	}
	sy, sm, sd := s.Date()
	ey, em, ed := e.Date()
	su := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	eu := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	// Unix seconds, not Sub: a Duration saturates after about 292 years.
	return int((eu.Unix()-su.Unix())/(24*60*60)) + 1
}

// LoadLocation resolves a timezone name, defaulting to UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
