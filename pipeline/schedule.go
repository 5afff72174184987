package pipeline

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs scrapes and expiration passes on cron schedules.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers a scrape of every source on scrapeSpec and an
// expiration pass on expireSpec. An empty spec disables that job. A job
// still running when its next tick arrives is skipped.
func NewScheduler(r *Runner, scrapeSpec, expireSpec string) (*Scheduler, error) {
	logger := cronLogger{r.log.Named("cron").Sugar()}
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	if scrapeSpec != "" {
		if _, err := c.AddFunc(scrapeSpec, r.scheduledScrape); err != nil {
			return nil, fmt.Errorf("scrape schedule %q: %w", scrapeSpec, err)
		}
	}
	if expireSpec != "" {
		if _, err := c.AddFunc(expireSpec, r.scheduledExpire); err != nil {
			return nil, fmt.Errorf("expire schedule %q: %w", expireSpec, err)
		}
	}
	return &Scheduler{cron: c}, nil
}

func (r *Runner) scheduledScrape() {
	if !r.begin() {
		return
	}
	defer r.wg.Done()
	if _, err := r.Run(r.base, AllSources); err != nil {
		r.log.Error("scheduled scrape failed", zap.Error(err))
	}
}

func (r *Runner) scheduledExpire() {
	if !r.begin() {
		return
	}
	defer r.wg.Done()
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	defer cancel()
	if _, err := r.Expire(ctx); err != nil {
		r.log.Error("scheduled expire failed", zap.Error(err))
	}
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling. The returned context is done once running jobs end.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
