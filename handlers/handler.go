package handlers

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/query"
	"github.com/ze-codes/tee-time-scraper/reconcile"
)

// Searcher reads tee times for the query API.
type Searcher interface {
	Search(ctx context.Context, f *query.Filter) (*query.Page, error)
	CourseNames(ctx context.Context) ([]string, error)
}

// Runner starts scrapes and expiration passes.
type Runner interface {
	Trigger(name string) (uuid.UUID, error)
	Expire(ctx context.Context) (*reconcile.Result, error)
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	store  Searcher
	runner Runner
	log    *zap.Logger
}

// New creates a Handler.
func New(store Searcher, runner Runner, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, runner: runner, log: log.Named("api")}
}
