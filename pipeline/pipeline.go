// Package pipeline runs scrapes: it fetches sources in parallel, each under
// its own deadline and outside any lock, and hands the combined records to
// the reconciliation engine.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/notify"
	"github.com/ze-codes/tee-time-scraper/reconcile"
	"github.com/ze-codes/tee-time-scraper/source"
)

// AllSources selects every configured source.
const AllSources = "all"

var (
	// ErrUnknownSource is returned for a source name that is not configured.
	ErrUnknownSource = errors.New("unknown source")
	// ErrSourceUnavailable marks a source that failed or timed out. The run
	// continues without it.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrShuttingDown is returned for runs started after Shutdown.
	ErrShuttingDown = errors.New("runner is shutting down")
)

// Reconciler is the part of reconcile.Engine the pipeline drives.
type Reconciler interface {
	Reconcile(ctx context.Context, records []reconcile.RawRecord) *reconcile.Result
	Expire(ctx context.Context) (*reconcile.Result, error)
}

// Options tune a Runner.
type Options struct {
	// Timeout bounds each source fetch. Defaults to five minutes.
	Timeout   time.Duration
	Publisher notify.Publisher
	Log       *zap.Logger
}

// Runner starts scrape runs and expiration passes.
type Runner struct {
	sources map[string]source.Source
	engine  Reconciler
	pub     notify.Publisher
	log     *zap.Logger
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New builds a Runner over the named sources.
func New(sources map[string]source.Source, engine Reconciler, opts Options) *Runner {
	r := &Runner{
		sources: sources,
		engine:  engine,
		pub:     opts.Publisher,
		log:     opts.Log,
		timeout: opts.Timeout,
	}
	if r.pub == nil {
		r.pub = notify.Noop{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.log = r.log.Named("pipeline")
	if r.timeout <= 0 {
		r.timeout = 5 * time.Minute
	}
	r.base, r.cancel = context.WithCancel(context.Background())
	return r
}

// SourceReport is the outcome of fetching one source.
type SourceReport struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// Report is the outcome of one scrape run.
type Report struct {
	RunID   string            `json:"runID"`
	Sources []SourceReport    `json:"sources"`
	Result  *reconcile.Result `json:"result"`
}

// Names returns the configured source names, sorted.
func (r *Runner) Names() []string {
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (r *Runner) resolve(name string) ([]source.Source, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == AllSources {
		out := make([]source.Source, 0, len(r.sources))
		for _, n := range r.Names() {
			out = append(out, r.sources[n])
		}
		return out, nil
	}
	if s, ok := r.sources[name]; ok {
		return []source.Source{s}, nil
	}
	return nil, fmt.Errorf("%w %q, valid sources: %s", ErrUnknownSource, name,
		strings.Join(append([]string{AllSources}, r.Names()...), ", "))
}

// Trigger starts a scrape of name ("all" or empty for every source) in the
// background and returns its run id. The run outlives the caller's request
// and is only cancelled by Shutdown.
func (r *Runner) Trigger(name string) (uuid.UUID, error) {
	srcs, err := r.resolve(name)
	if err != nil {
		return uuid.Nil, err
	}
	if !r.begin() {
		return uuid.Nil, ErrShuttingDown
	}
	id := uuid.New()

	go func() {
		defer r.wg.Done()
		r.run(r.base, id, srcs)
	}()
	return id, nil
}

// Run scrapes name and waits for the result.
func (r *Runner) Run(ctx context.Context, name string) (*Report, error) {
	srcs, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, uuid.New(), srcs), nil
}

// Expire runs the expiration pass over every course.
func (r *Runner) Expire(ctx context.Context) (*reconcile.Result, error) {
	res, err := r.engine.Expire(ctx)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, notify.KeyExpireFinished, res)
	return res, nil
}

// begin registers a background run. It fails once Shutdown has started, so
// no run is added while Shutdown waits.
func (r *Runner) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.wg.Add(1)
	return true
}

// Shutdown refuses new background runs and waits for running ones. If ctx
// ends first they are cancelled.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

type fetched struct {
	name    string
	records []reconcile.RawRecord
	err     error
}

func (r *Runner) run(ctx context.Context, id uuid.UUID, srcs []source.Source) *Report {
	log := r.log.With(zap.String("run_id", id.String()))
	log.Info("scrape started", zap.Int("sources", len(srcs)))

	p := pool.NewWithResults[fetched]()
	for _, s := range srcs {
		p.Go(func() fetched { return r.fetch(ctx, s) })
	}
	got := p.Wait()
	slices.SortFunc(got, func(a, b fetched) int { return cmp.Compare(a.name, b.name) })

	rep := &Report{RunID: id.String()}
	var records []reconcile.RawRecord
	for _, f := range got {
		sr := SourceReport{Name: f.name, Records: len(f.records)}
		if f.err != nil {
			sr.Error = f.err.Error()
			log.Warn("skipping source", zap.String("source", f.name), zap.Error(f.err))
		} else {
			records = append(records, f.records...)
		}
		rep.Sources = append(rep.Sources, sr)
	}

	rep.Result = r.engine.Reconcile(ctx, records)
	tot := rep.Result.Total()
	log.Info("scrape finished",
		zap.Int("records", len(records)),
		zap.Int("inserted", tot.Inserted),
		zap.Int("updated", tot.Updated),
		zap.Int("expired", tot.Expired),
		zap.Int("tombstoned", tot.Tombstoned),
		zap.NamedError("course_errors", rep.Result.Err()),
	)

	r.publish(ctx, notify.KeyScrapeFinished, rep)
	return rep
}

func (r *Runner) fetch(ctx context.Context, s source.Source) fetched {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	recs, err := s.FetchRawRecords(ctx)
	if err != nil {
		return fetched{name: s.Name(), err: fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.Name(), err)}
	}
	r.log.Debug("source fetched",
		zap.String("source", s.Name()),
		zap.Int("records", len(recs)),
		zap.Duration("took", time.Since(start)),
	)
	return fetched{name: s.Name(), records: recs}
}

func (r *Runner) publish(ctx context.Context, key string, v any) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.pub.PublishJSON(ctx, key, v); err != nil {
		r.log.Warn("publish failed", zap.String("key", key), zap.Error(err))
	}
}
