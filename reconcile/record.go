package reconcile

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ze-codes/tee-time-scraper/availability"
	"github.com/ze-codes/tee-time-scraper/models"
	"github.com/ze-codes/tee-time-scraper/tz"
)

// RawRecord is one tee time as a scrape source saw it. Either Instant is set,
// or LocalDate and LocalTime hold the course-local wall clock.
type RawRecord struct {
	Course       string    `json:"course"`
	LocalDate    string    `json:"localDate,omitempty"`
	LocalTime    string    `json:"localTime,omitempty"`
	Instant      time.Time `json:"instant,omitempty"`
	Price        string    `json:"price"`
	Currency     string    `json:"currency"`
	Availability string    `json:"availability"`
	StartingHole string    `json:"startingHole"`
}

// Issue is a data-quality problem found while normalising a record.
type Issue struct {
	Field string
	Value string
	Err   error
	// Dropped is set when the record could not be placed at all.
	Dropped bool
}

var (
	pricePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	digitPattern = regexp.MustCompile(`\d+`)
)

// slotRecord is a RawRecord after timezone, price and availability
// normalisation for a specific course.
type slotRecord struct {
	start     time.Time
	localDate string
	price     float64
	currency  string
	sizes     []int
	hole      int
}

// normalize converts r for course. The record is unusable when ok is false.
func normalize(r RawRecord, course *models.Course, loc *time.Location, defaultCurrency string) (rec slotRecord, issues []Issue, ok bool) {
	start := r.Instant
	if start.IsZero() {
		var err error
		start, err = tz.ToUTC(r.LocalDate, r.LocalTime, loc)
		if err != nil {
			return rec, []Issue{{
				Field:   "datetime",
				Value:   strings.TrimSpace(r.LocalDate + " " + r.LocalTime),
				Err:     err,
				Dropped: true,
			}}, false
		}
	}
	rec.start = start.UTC().Truncate(time.Second)
	rec.localDate = tz.LocalDate(rec.start, loc)

	price, err := parsePrice(r.Price)
	if err != nil {
		issues = append(issues, Issue{Field: "price", Value: r.Price, Err: err})
	}
	rec.price = price

	rec.currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if rec.currency == "" {
		rec.currency = defaultCurrency
	}

	sizes, parsed := availability.Parse(r.Availability, course.MinSize())
	if !parsed {
		issues = append(issues, Issue{
			Field: "availability",
			Value: r.Availability,
			Err:   fmt.Errorf("unrecognised party sizes, using %v", sizes),
		})
	}
	rec.sizes = sizes

	hole, err := parseHole(r.StartingHole)
	if err != nil {
		issues = append(issues, Issue{Field: "starting_hole", Value: r.StartingHole, Err: err})
	}
	rec.hole = hole

	return rec, issues, true
}

// parsePrice extracts the first number from text like "$45.00/player".
// Anything unreadable becomes 0.
func parsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	m := pricePattern.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("no price in %q", s)
	}
	p, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, err
	}
	return math.Round(p*100) / 100, nil
}

// parseHole reads the digits of text like "Hole 10" or "10th tee".
// Blank text is the normal case for sources that only start on hole 1.
func parseHole(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	m := digitPattern.FindString(s)
	if m == "" {
		return 1, fmt.Errorf("no hole number in %q", s)
	}
	h, err := strconv.Atoi(m)
	if err != nil || h < 1 {
		return 1, fmt.Errorf("invalid hole number %q", m)
	}
	return h, nil
}

// less orders records for the same instant so duplicate resolution does not
// depend on the order records arrived in.
func (a slotRecord) less(b slotRecord) bool {
	if a.price != b.price {
		return a.price < b.price
	}
	if a.currency != b.currency {
		return a.currency < b.currency
	}
	if a.hole != b.hole {
		return a.hole < b.hole
	}
	return slices.Compare(a.sizes, b.sizes) < 0
}

// courseBatch is the normalised view of one course's records.
type courseBatch struct {
	byInstant map[int64]slotRecord
	covered   map[string]struct{}
}

func newCourseBatch() *courseBatch {
	return &courseBatch{
		byInstant: map[int64]slotRecord{},
		covered:   map[string]struct{}{},
	}
}

func (b *courseBatch) add(rec slotRecord) {
	key := rec.start.UnixNano()
	if prev, ok := b.byInstant[key]; ok && !prev.less(rec) {
		return
	}
	b.byInstant[key] = rec
	b.covered[rec.localDate] = struct{}{}
}

// coveredDates returns the course-local dates present in the batch, sorted.
func (b *courseBatch) coveredDates() []string {
	out := make([]string, 0, len(b.covered))
	for d := range b.covered {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// scope returns the persisted slots the passes need to see: anything still
// open before now, and everything on a covered local date.
func (b *courseBatch) scope(now time.Time, loc *time.Location) (Scope, error) {
	sc := Scope{Now: now}
	dates := b.coveredDates()
	if len(dates) == 0 {
		return sc, nil
	}
	from, _, err := tz.DayBounds(dates[0], loc)
	if err != nil {
		return sc, err
	}
	_, to, err := tz.DayBounds(dates[len(dates)-1], loc)
	if err != nil {
		return sc, err
	}
	sc.From, sc.To = from, to
	return sc, nil
}
