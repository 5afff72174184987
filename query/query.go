// Package query parses and validates tee-time search requests and holds the
// pagination arithmetic and wire shapes of the search API.
package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/tz"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage keeps the row offset within an int.
	MaxPage      = math.MaxInt / MaxLimit
)

// SortField is one of the whitelisted sort keys.
type SortField string

const (
	SortTime         SortField = "time"
	SortPrice        SortField = "price"
	SortCourse       SortField = "course"
	SortAvailability SortField = "availability"
)

// SortColumns maps each accepted sort key to its SQL ordering expression.
// Nothing outside this map ever reaches ORDER BY.
var SortColumns = map[SortField]string{
	SortTime:         "ts.start_time",
	SortPrice:        "ts.price",
	SortCourse:       "c.name",
	SortAvailability: "cardinality(ts.available_booking_sizes)",
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ValidationError reports a malformed or self-contradictory parameter.
type ValidationError struct {
	Param string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Msg)
}

func invalid(param, format string, args ...any) *ValidationError {
	return &ValidationError{Param: param, Msg: fmt.Sprintf(format, args...)}
}

// Filter is a conjunction of optional predicates plus paging and sorting.
// Date and time-of-day bounds are interpreted in each course's own zone.
type Filter struct {
	Date            string
	Courses         []string
	MinPrice        *float64
	MaxPrice        *float64
	StartTime       string
	EndTime         string
	MinAvailability int

	StartAge    *int
	EndAge      *int
	Gender      string
	Race        string
	SocialLevel string
	Handicap    string

	Page  int
	Limit int
	Sort  SortField
	Order Order
}

// HasDemographics reports whether any player filter is set.
func (f *Filter) HasDemographics() bool {
	return f.StartAge != nil || f.EndAge != nil || f.Gender != "" ||
		f.Race != "" || f.SocialLevel != "" || f.Handicap != ""
}

// Offset is the number of rows skipped before the requested page.
func (f *Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Parse reads a Filter from query-string values. An unknown sort field is
// logged and replaced with the default; every other problem is returned as a
// *ValidationError before any query runs.
func Parse(v url.Values, log *zap.Logger) (*Filter, error) {
	f := &Filter{
		Date:        strings.TrimSpace(v.Get("date")),
		Gender:      strings.TrimSpace(v.Get("gender")),
		Race:        strings.TrimSpace(v.Get("race")),
		SocialLevel: strings.TrimSpace(v.Get("socialLevel")),
		Handicap:    strings.TrimSpace(v.Get("handicap")),
		Page:        DefaultPage,
		Limit:       DefaultLimit,
		Sort:        SortTime,
		Order:       Asc,
	}

	for _, name := range v["course"] {
		if name = strings.TrimSpace(name); name != "" {
			f.Courses = append(f.Courses, name)
		}
	}

	var err error
	if f.MinPrice, err = optFloat(v, "min_price"); err != nil {
		return nil, err
	}
	if f.MaxPrice, err = optFloat(v, "max_price"); err != nil {
		return nil, err
	}
	if f.StartAge, err = optInt(v, "startage"); err != nil {
		return nil, err
	}
	if f.EndAge, err = optInt(v, "endage"); err != nil {
		return nil, err
	}
	if n, err := optInt(v, "availability"); err != nil {
		return nil, err
	} else if n != nil {
		f.MinAvailability = *n
	}
	if n, err := optInt(v, "page"); err != nil {
		return nil, err
	} else if n != nil {
		f.Page = *n
	}
	if n, err := optInt(v, "limit"); err != nil {
		return nil, err
	} else if n != nil {
		f.Limit = *n
	}
	if f.StartTime, err = optClock(v, "starttime"); err != nil {
		return nil, err
	}
	if f.EndTime, err = optClock(v, "endtime"); err != nil {
		return nil, err
	}

	if s := strings.ToLower(strings.TrimSpace(v.Get("sort"))); s != "" {
		if _, ok := SortColumns[SortField(s)]; ok {
			f.Sort = SortField(s)
		} else if log != nil {
			log.Warn("ignoring unknown sort field", zap.String("sort", s), zap.String("using", string(SortTime)))
		}
	}
	if o := strings.ToLower(strings.TrimSpace(v.Get("order"))); o != "" {
		f.Order = Order(o)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks ranges and cross-field consistency.
func (f *Filter) Validate() error {
	if f.Date != "" {
		if _, err := time.Parse(tz.DateLayout, f.Date); err != nil {
			return invalid("date", "want YYYY-MM-DD, got %q", f.Date)
		}
	}
	if f.MinPrice != nil && *f.MinPrice < 0 {
		return invalid("min_price", "must not be negative")
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return invalid("max_price", "must not be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return invalid("min_price", "%v is greater than max_price %v", *f.MinPrice, *f.MaxPrice)
	}
	if f.StartTime != "" && f.EndTime != "" && f.StartTime > f.EndTime {
		return invalid("starttime", "%s is after endtime %s", f.StartTime, f.EndTime)
	}
	if f.StartAge != nil && f.EndAge != nil && *f.StartAge > *f.EndAge {
		return invalid("startage", "%d is greater than endage %d", *f.StartAge, *f.EndAge)
	}
	if f.MinAvailability < 0 {
		return invalid("availability", "must not be negative")
	}
	if f.Page < 1 || f.Page > MaxPage {
		return invalid("page", "must be between 1 and %d", MaxPage)
	}
	if f.Limit < 1 || f.Limit > MaxLimit {
		return invalid("limit", "must be between 1 and %d", MaxLimit)
	}
	if f.Order != Asc && f.Order != Desc {
		return invalid("order", "must be asc or desc")
	}
	if _, ok := SortColumns[f.Sort]; !ok {
		return invalid("sort", "unsupported field %q", f.Sort)
	}
	return nil
}

// OrderExpr returns the ORDER BY clause for the filter's sort.
func (f *Filter) OrderExpr() string {
	dir := "ASC"
	if f.Order == Desc {
		dir = "DESC"
	}
	return SortColumns[f.Sort] + " " + dir + ", ts.id ASC"
}

func optFloat(v url.Values, key string) (*float64, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, invalid(key, "not a number: %q", s)
	}
	return &n, nil
}

func optInt(v url.Values, key string) (*int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, invalid(key, "not an integer: %q", s)
	}
	return &n, nil
}

func optClock(v url.Values, key string) (string, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return "", nil
	}
	h, m, _, err := tz.ParseClock(s)
	if err != nil {
		return "", invalid(key, "want HH:MM, got %q", s)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}
