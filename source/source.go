// Package source fetches raw tee times from booking sites.
package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ze-codes/tee-time-scraper/config"
	"github.com/ze-codes/tee-time-scraper/reconcile"
	"github.com/ze-codes/tee-time-scraper/tz"
)

// UserAgent is sent with every page request.
const UserAgent = "tee-time-scraper/1.0 (github.com/ze-codes/tee-time-scraper)"

// Source is one booking site. FetchRawRecords returns whatever the site
// currently lists; callers bound it with a context deadline.
type Source interface {
	Name() string
	FetchRawRecords(ctx context.Context) ([]reconcile.RawRecord, error)
}

// Options are shared by every source built from the registry.
type Options struct {
	Client     *http.Client
	ChromePath string
	Log        *zap.Logger
	Now        func() time.Time
}

// Build constructs one Source per registry entry, keyed by name.
func Build(reg *config.Registry, opts Options) (map[string]Source, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	out := make(map[string]Source, len(reg.Sources))
	for _, sc := range reg.Sources {
		var (
			src Source
			err error
		)
		switch sc.Kind {
		case config.KindProphet:
			src, err = NewProphet(sc, opts)
		case config.KindTotale:
			src, err = NewTotale(sc, opts)
		default:
			err = fmt.Errorf("unknown kind %q", sc.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		out[sc.Name] = src
	}
	return out, nil
}

// site holds what every source kind needs from its registry entry.
type site struct {
	name     string
	url      string
	loc      *time.Location
	currency string
	days     int
	courses  []string
	limiter  *rate.Limiter
	now      func() time.Time
	log      *zap.Logger
}

func newSite(sc config.SourceConfig, opts Options) (site, error) {
	loc, err := tz.Load(sc.Timezone)
	if err != nil {
		return site{}, err
	}
	rps := sc.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	s := site{
		name:     sc.Name,
		url:      sc.URL,
		loc:      loc,
		currency: sc.Currency,
		days:     max(sc.Days, 1),
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		now:      opts.Now,
		log:      opts.Log.Named("source").With(zap.String("source", sc.Name)),
	}
	for _, c := range sc.Courses {
		s.courses = append(s.courses, c.Name)
	}
	return s, nil
}

// dates returns the local calendar days to read, starting today.
func (s site) dates() []time.Time {
	today := s.now().In(s.loc)
	y, m, d := today.Date()
	out := make([]time.Time, 0, s.days)
	for i := range s.days {
		out = append(out, time.Date(y, m, d+i, 0, 0, 0, 0, s.loc))
	}
	return out
}

// defaultCourse is the course name used when the page does not show one.
func (s site) defaultCourse() string {
	if len(s.courses) == 1 {
		return s.courses[0]
	}
	return ""
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
