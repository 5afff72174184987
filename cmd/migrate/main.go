// cmd/migrate/main.go
// Copies a legacy MySQL tee sheet (courses + tee_times) into PostgreSQL.
//
// Usage:
//
//	MYSQL_DSN="user:pass@tcp(host:3306)/teetimes?parseTime=true" \
//	DB_PASS="pgpass" \
//	go run ./cmd/migrate
//
// Rows that already exist are skipped, so the import can be re-run.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"

	"github.com/ze-codes/tee-time-scraper/availability"
	"github.com/ze-codes/tee-time-scraper/config"
	bundb "github.com/ze-codes/tee-time-scraper/db"
	"github.com/ze-codes/tee-time-scraper/models"
)

const batchSize = 500

func main() {
	ctx := context.Background()

	cfg := config.Load()

	// --- MySQL ---
	if cfg.MySQLDSN == "" {
		log.Fatal("MYSQL_DSN required, e.g.: user:pass@tcp(host:3306)/teetimes?parseTime=true")
	}
	myDB, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("open mysql: %v", err)
	}
	defer myDB.Close()
	myDB.SetMaxOpenConns(4)
	if err := myDB.PingContext(ctx); err != nil {
		log.Fatalf("ping mysql: %v", err)
	}
	log.Println("connected to MySQL")

	// --- PostgreSQL ---
	pgDB := bundb.Setup(cfg)
	defer pgDB.Close()
	log.Println("connected to PostgreSQL")

	if err := bundb.CreateTables(ctx, pgDB); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	steps := []struct {
		name string
		fn   func() (int, error)
	}{
		{"courses", func() (int, error) { return migrateCourses(ctx, myDB, pgDB, cfg.DefaultTimezone) }},
		{"tee_slots", func() (int, error) { return migrateTeeTimes(ctx, myDB, pgDB, cfg.DefaultCurrency) }},
	}

	for _, s := range steps {
		n, err := s.fn()
		if err != nil {
			log.Fatalf("migrate %s: %v", s.name, err)
		}
		log.Printf("%-15s  %d rows read", s.name, n)
	}

	resetSequences(ctx, pgDB)
	log.Println("migration complete")
}

// --- helpers ---

func nullStr(n sql.NullString, fallback string) string {
	if !n.Valid || n.String == "" {
		return fallback
	}
	return n.String
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

// legacySizes converts the legacy available_spots CSV. A slot whose status
// is anything but "available" is stored closed.
func legacySizes(spots, status sql.NullString, minSize int) []int {
	if status.Valid && status.String != "" && status.String != "available" {
		return []int{}
	}
	if !spots.Valid || spots.String == "" {
		return []int{}
	}
	sizes, ok := availability.Parse(spots.String, minSize)
	if !ok {
		return []int{}
	}
	return sizes
}

// bulkInsert inserts a batch, skipping rows that already exist (idempotent re-runs).
func bulkInsert[T any](ctx context.Context, pgDB *bun.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := pgDB.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx)
	return err
}

// --- per-table migrations ---

func migrateCourses(ctx context.Context, myDB *sql.DB, pgDB *bun.DB, zone string) (int, error) {
	rows, err := myDB.QueryContext(ctx,
		"SELECT id, name, latitude, longitude, timezone FROM courses")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	now := time.Now().UTC()
	var batch []models.Course
	total := 0
	for rows.Next() {
		var (
			id       int64
			name     string
			lat, lon sql.NullFloat64
			tzName   sql.NullString
		)
		if err := rows.Scan(&id, &name, &lat, &lon, &tzName); err != nil {
			return total, err
		}
		batch = append(batch, models.Course{
			ID:             id,
			Name:           name,
			Latitude:       nullFloat(lat),
			Longitude:      nullFloat(lon),
			Timezone:       nullStr(tzName, zone),
			MinBookingSize: models.DefaultMinBookingSize,
			CreatedAt:      now,
		})
		if len(batch) >= batchSize {
			if err := bulkInsert(ctx, pgDB, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := bulkInsert(ctx, pgDB, batch); err != nil {
		return total, err
	}
	return total + len(batch), rows.Err()
}

// migrateTeeTimes copies tee_times. Legacy datetimes are UTC wall clocks.
func migrateTeeTimes(ctx context.Context, myDB *sql.DB, pgDB *bun.DB, currency string) (int, error) {
	rows, err := myDB.QueryContext(ctx,
		`SELECT id, course_id, datetime, price, currency, available_spots, starting_hole, status
		 FROM tee_times`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	now := time.Now().UTC()
	var batch []models.TeeSlot
	total := 0
	for rows.Next() {
		var (
			id       int64
			courseID int64
			start    time.Time
			price    sql.NullFloat64
			cur      sql.NullString
			spots    sql.NullString
			hole     sql.NullInt64
			status   sql.NullString
		)
		if err := rows.Scan(&id, &courseID, &start, &price, &cur, &spots, &hole, &status); err != nil {
			return total, err
		}
		slot := models.TeeSlot{
			ID:                    id,
			CourseID:              courseID,
			StartTime:             time.Date(start.Year(), start.Month(), start.Day(), start.Hour(), start.Minute(), start.Second(), 0, time.UTC),
			Price:                 price.Float64,
			Currency:              nullStr(cur, currency),
			AvailableBookingSizes: legacySizes(spots, status, models.DefaultMinBookingSize),
			StartingHole:          1,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if hole.Valid && hole.Int64 > 0 {
			slot.StartingHole = int(hole.Int64)
		}
		batch = append(batch, slot)
		if len(batch) >= batchSize {
			if err := bulkInsert(ctx, pgDB, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := bulkInsert(ctx, pgDB, batch); err != nil {
		return total, err
	}
	return total + len(batch), rows.Err()
}

// resetSequences advances each PG sequence to MAX(id) so new inserts don't conflict.
func resetSequences(ctx context.Context, pgDB *bun.DB) {
	seqs := []struct{ seq, table, col string }{
		{"courses_id_seq", "courses", "id"},
		{"tee_slots_id_seq", "tee_slots", "id"},
	}
	for _, s := range seqs {
		q := fmt.Sprintf(
			"SELECT setval('%s', COALESCE((SELECT MAX(%s) FROM %s), 1))",
			s.seq, s.col, s.table,
		)
		if _, err := pgDB.ExecContext(ctx, q); err != nil {
			log.Printf("reset seq %s: %v", s.seq, err)
		}
	}
	log.Println("sequences reset")
}
