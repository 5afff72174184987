// Package reconcile merges freshly scraped tee times into persisted state.
//
// Each course is reconciled as one unit: its records are normalised, then the
// expiration, missing-slot and upsert passes are planned and written in a
// single transaction while a per-course lock is held. Failures are scoped to
// the course that caused them.
package reconcile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/models"
	"github.com/ze-codes/tee-time-scraper/tz"
)

// ErrPersistenceConflict wraps store failures that outlived the retry budget.
var ErrPersistenceConflict = errors.New("reconcile: persistence conflict")

// Store is the persistence boundary the engine writes through.
type Store interface {
	// EnsureCourse returns the course with exactly this name, creating it
	// with default settings if it does not exist.
	EnsureCourse(ctx context.Context, name string) (*models.Course, error)
	// Courses lists every known course.
	Courses(ctx context.Context) ([]models.Course, error)
	// ApplyCourse loads the course's slots selected by scope, calls plan and
	// writes the result, all inside one transaction. Nothing is written if
	// plan or any write fails.
	ApplyCourse(ctx context.Context, course *models.Course, scope Scope, plan PlanFunc) (*Plan, error)
}

// Options tune an Engine. Zero values select defaults.
type Options struct {
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// Retries is how many times a failed course transaction is retried.
	// Zero selects the default; negative disables retrying.
	Retries int
	// RetryInterval is the first backoff interval between retries.
	RetryInterval time.Duration
	// DefaultCurrency applies to records without a currency.
	DefaultCurrency string
	// Parallelism caps how many courses reconcile at once.
	Parallelism int
}

// Engine reconciles batches of raw records against a Store.
type Engine struct {
	store    Store
	log      *zap.Logger
	now      func() time.Time
	retries  uint64
	interval time.Duration
	currency string
	parallel int

	locks *xsync.MapOf[int64, *sync.Mutex]
}

// New builds an Engine.
func New(store Store, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:    store,
		log:      log.Named("reconcile"),
		now:      opts.Now,
		retries:  3,
		interval: 100 * time.Millisecond,
		currency: "CAD",
		parallel: 4,
		locks:    xsync.NewMapOf[int64, *sync.Mutex](),
	}
	if e.now == nil {
		e.now = time.Now
	}
	switch {
	case opts.Retries > 0:
		e.retries = uint64(opts.Retries)
	case opts.Retries < 0:
		e.retries = 0
	}
	if opts.RetryInterval > 0 {
		e.interval = opts.RetryInterval
	}
	if opts.DefaultCurrency != "" {
		e.currency = opts.DefaultCurrency
	}
	if opts.Parallelism > 0 {
		e.parallel = opts.Parallelism
	}
	return e
}

// Reconcile merges records into the store. Records are grouped by exact
// course name and each course is reconciled independently; one course
// failing never stops the others.
func (e *Engine) Reconcile(ctx context.Context, records []RawRecord) *Result {
	res := &Result{Started: e.now().UTC()}

	groups := map[string][]RawRecord{}
	for _, r := range records {
		if r.Course == "" {
			res.Unassigned++
			e.log.Warn("record without course",
				zap.Bool("data_quality", true),
				zap.String("local_date", r.LocalDate),
				zap.String("local_time", r.LocalTime),
			)
			continue
		}
		groups[r.Course] = append(groups[r.Course], r)
	}

	p := pool.NewWithResults[CourseResult]().WithMaxGoroutines(e.parallel)
	for name, recs := range groups {
		p.Go(func() CourseResult {
			return e.reconcileCourse(ctx, name, recs)
		})
	}
	res.Courses = p.Wait()
	slices.SortFunc(res.Courses, func(a, b CourseResult) int { return cmp.Compare(a.Course, b.Course) })

	res.Finished = e.now().UTC()
	return res
}

func (e *Engine) reconcileCourse(ctx context.Context, name string, recs []RawRecord) CourseResult {
	now := e.now().UTC()
	cr := CourseResult{Course: name, Records: len(recs)}
	log := e.log.With(zap.String("course", name))

	course, err := e.store.EnsureCourse(ctx, name)
	if err != nil {
		return cr.fail(fmt.Errorf("resolve course %q: %w", name, err))
	}
	cr.CourseID = course.ID

	loc, err := tz.Load(course.Zone())
	if err != nil {
		log.Warn("bad course timezone, using default",
			zap.Bool("data_quality", true),
			zap.String("timezone", course.Timezone),
			zap.Error(err),
		)
		if loc, err = tz.Load(""); err != nil {
			return cr.fail(err)
		}
	}

	batch := newCourseBatch()
	for _, r := range recs {
		rec, issues, ok := normalize(r, course, loc, e.currency)
		for _, is := range issues {
			cr.DataQuality++
			log.Warn("data quality",
				zap.Bool("data_quality", true),
				zap.String("field", is.Field),
				zap.String("value", is.Value),
				zap.Bool("dropped", is.Dropped),
				zap.Error(is.Err),
			)
		}
		if !ok {
			cr.Dropped++
			continue
		}
		batch.add(rec)
	}
	cr.CoveredDates = batch.coveredDates()

	scope, err := batch.scope(now, loc)
	if err != nil {
		return cr.fail(err)
	}

	plan, err := e.apply(ctx, course, scope, func(existing []models.TeeSlot) (*Plan, error) {
		return planCourse(course.ID, existing, batch, loc, now), nil
	})
	if err != nil {
		log.Error("reconcile failed", zap.Error(err))
		return cr.fail(err)
	}
	cr.record(plan)

	log.Info("course reconciled",
		zap.Int("records", cr.Records),
		zap.Strings("covered_dates", cr.CoveredDates),
		zap.Int("inserted", cr.Inserted),
		zap.Int("updated", cr.Updated),
		zap.Int("expired", cr.Expired),
		zap.Int("tombstoned", cr.Tombstoned),
		zap.Int("unchanged", cr.Unchanged),
		zap.Int("data_quality", cr.DataQuality),
	)
	return cr
}

// Expire runs only the expiration pass for every known course.
func (e *Engine) Expire(ctx context.Context) (*Result, error) {
	res := &Result{Started: e.now().UTC()}

	courses, err := e.store.Courses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	p := pool.NewWithResults[CourseResult]().WithMaxGoroutines(e.parallel)
	for i := range courses {
		course := &courses[i]
		p.Go(func() CourseResult {
			now := e.now().UTC()
			cr := CourseResult{Course: course.Name, CourseID: course.ID}
			plan, err := e.apply(ctx, course, Scope{Now: now}, func(existing []models.TeeSlot) (*Plan, error) {
				return planExpire(existing, now), nil
			})
			if err != nil {
				e.log.Error("expire failed", zap.String("course", course.Name), zap.Error(err))
				return cr.fail(err)
			}
			cr.record(plan)
			return cr
		})
	}
	res.Courses = p.Wait()
	slices.SortFunc(res.Courses, func(a, b CourseResult) int { return cmp.Compare(a.Course, b.Course) })

	res.Finished = e.now().UTC()
	e.log.Info("expiration pass finished",
		zap.Int("courses", len(res.Courses)),
		zap.Int("expired", res.Total().Expired),
	)
	return res, nil
}

// apply holds the course lock for the whole transactional write, retrying
// the transaction with exponential backoff.
func (e *Engine) apply(ctx context.Context, course *models.Course, scope Scope, fn PlanFunc) (*Plan, error) {
	mu, _ := e.locks.LoadOrCompute(course.ID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	defer mu.Unlock()

	var plan *Plan
	attempt := 0
	op := func() error {
		attempt++
		p, err := e.store.ApplyCourse(ctx, course, scope, fn)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			e.log.Warn("course transaction failed",
				zap.String("course", course.Name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		plan = p
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.interval
	bo.MaxElapsedTime = 0
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, e.retries), ctx)); err != nil {
		return nil, fmt.Errorf("%w: course %q after %d attempts: %w", ErrPersistenceConflict, course.Name, attempt, err)
	}
	return plan, nil
}
