// Package tz converts course-local wall-clock times to UTC instants and back.
//
// Instants are always persisted in UTC. Anything date-shaped (the dates a
// scrape covers, the "date" filter of the query API) is computed in the
// course's own zone so that late evening tee times are not shifted onto the
// next UTC day.
package tz

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ze-codes/tee-time-scraper/models"
)

// DateLayout is the canonical calendar date format used across the API.
const DateLayout = "2006-01-02"

var (
	dateLayouts  = []string{DateLayout, "01/02/2006", "1/2/2006", "2006-1-2"}
	clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM"}

	locations = xsync.NewMapOf[string, *time.Location]()
)

// Load resolves an IANA zone name. An empty name resolves to the default
// course zone. Results are cached.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultTimezone
	}
	if loc, ok := locations.Load(name); ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("tz: load %q: %w", name, err)
	}
	locations.Store(name, loc)
	return loc, nil
}

// ParseDate parses a calendar date in any of the layouts scrape sources emit.
// The returned time is midnight UTC and only its Y/M/D fields are meaningful.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("tz: unrecognised date %q", s)
}

// ParseClock parses a wall-clock time of day and returns hour, minute, second.
func ParseClock(s string) (int, int, int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("tz: unrecognised time %q", s)
}

// ToUTC localises date+clock in loc and returns the UTC instant. Wall times
// that fall into a DST gap or overlap resolve the way time.Date does.
func ToUTC(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	h, m, sec, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, sec, 0, loc).UTC(), nil
}

// LocalDate returns the calendar date of t as observed in loc.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// DayBounds returns the UTC instants of local midnight starting date and the
// following local midnight. Days containing a DST switch are 23 or 25 hours.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC(), nil
}
