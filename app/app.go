// Package app wires configuration, storage, sources and the pipeline
// together for the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/config"
	"github.com/ze-codes/tee-time-scraper/db"
	"github.com/ze-codes/tee-time-scraper/notify"
	"github.com/ze-codes/tee-time-scraper/pipeline"
	"github.com/ze-codes/tee-time-scraper/reconcile"
	"github.com/ze-codes/tee-time-scraper/source"
)

// App holds the long-lived components.
type App struct {
	Config    *config.Config
	Registry  *config.Registry
	DB        *bun.DB
	Store     *db.SlotStore
	Engine    *reconcile.Engine
	Runner    *pipeline.Runner
	Publisher notify.Publisher
	Log       *zap.Logger
}

// New connects to PostgreSQL, creates missing tables, seeds courses from
// the source registry and builds the pipeline.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	reg, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	bdb := db.Setup(cfg)
	a := &App{Config: cfg, Registry: reg, DB: bdb, Log: log, Publisher: notify.Noop{}}

	if err := db.CreateTables(ctx, bdb); err != nil {
		a.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	a.Store = db.NewSlotStore(bdb, cfg.DefaultTimezone)
	n, err := a.Store.SeedCourses(ctx, reg.Courses())
	if err != nil {
		a.Close()
		return nil, err
	}
	if n > 0 {
		log.Info("seeded courses", zap.Int("created", n))
	}

	if cfg.AMQPURL != "" {
		pub, err := notify.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			// Notifications are optional.
			log.Warn("rabbitmq unavailable, notifications disabled", zap.Error(err))
		} else {
			a.Publisher = pub
		}
	}

	a.Engine = reconcile.New(a.Store, log, reconcile.Options{
		Retries:         cfg.ReconcileRetries,
		DefaultCurrency: cfg.DefaultCurrency,
		Parallelism:     cfg.Parallelism,
	})

	srcs, err := source.Build(reg, source.Options{
		Client:     &http.Client{Timeout: 30 * time.Second},
		ChromePath: cfg.ChromePath,
		Log:        log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Runner = pipeline.New(srcs, a.Engine, pipeline.Options{
		Timeout:   cfg.ScrapeTimeout,
		Publisher: a.Publisher,
		Log:       log,
	})
	return a, nil
}

// Close releases the publisher and the database.
func (a *App) Close() {
	if a.Publisher != nil {
		_ = a.Publisher.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
