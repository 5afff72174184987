package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/ze-codes/tee-time-scraper/config"
	"github.com/ze-codes/tee-time-scraper/models"
)

// Setup opens a PostgreSQL connection using the provided config.
func Setup(cfg *config.Config) *bun.DB {
	db := Open(cfg.PostgresDSN(), cfg.Debug)

	if err := db.PingContext(context.Background()); err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	return db
}

// Open builds a bun handle for dsn without checking connectivity.
func Open(dsn string, debug bool) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// CreateTables creates all tables in dependency order.
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		model any
		fk    string
	}{
		{model: (*models.Course)(nil)},
		{model: (*models.TeeSlot)(nil), fk: `("course_id") REFERENCES "courses" ("id")`},
		{model: (*models.Player)(nil), fk: `("tee_slot_id") REFERENCES "tee_slots" ("id")`},
	}

	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		if t.fk != "" {
			q = q.ForeignKey(t.fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", t.model, err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*models.TeeSlot)(nil), "tee_slots_start_time_idx", []string{"start_time"}},
		{(*models.Player)(nil), "players_tee_slot_id_idx", []string{"tee_slot_id"}},
	}
	for _, ix := range indexes {
		if _, err := db.NewCreateIndex().
			Model(ix.model).
			Index(ix.name).
			Column(ix.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("creating index %s: %w", ix.name, err)
		}
	}

	return nil
}
