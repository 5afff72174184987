package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ze-codes/tee-time-scraper/query"
)

// slotRow is one search result row: a slot joined with its course.
type slotRow struct {
	ID                    int64     `bun:"id"`
	Course                string    `bun:"course"`
	Timezone              string    `bun:"timezone"`
	StartTime             time.Time `bun:"start_time"`
	AvailableBookingSizes []int     `bun:"available_booking_sizes,array"`
	Price                 float64   `bun:"price"`
	Currency              string    `bun:"currency"`
	StartingHole          int       `bun:"starting_hole"`
}

// localStart is the slot's wall-clock start in its course's zone.
const localStart = "(ts.start_time AT TIME ZONE c.timezone)"

// Search runs f against the store. Date and time-of-day bounds are compared
// in each course's own zone.
func (s *SlotStore) Search(ctx context.Context, f *query.Filter) (*query.Page, error) {
	var rows []slotRow
	q := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr("tee_slots AS ts").
		Join("JOIN courses AS c ON c.id = ts.course_id").
		ColumnExpr("ts.id, c.name AS course, c.timezone, ts.start_time, ts.available_booking_sizes, ts.price, ts.currency, ts.starting_hole")

	q = applyFilter(s.db, q, f)

	total, err := q.
		OrderExpr(f.OrderExpr()).
		Limit(f.Limit).
		Offset(f.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("search tee times: %w", err)
	}

	page := &query.Page{
		TeeTimes:   make([]query.Slot, 0, len(rows)),
		Pagination: query.Paginate(total, f.Page, f.Limit),
	}
	for _, r := range rows {
		page.TeeTimes = append(page.TeeTimes, query.FormatSlot(
			r.ID, r.Course, r.Timezone, r.StartTime, r.AvailableBookingSizes, r.Price, r.Currency, r.StartingHole,
		))
	}
	return page, nil
}

func applyFilter(db bun.IDB, q *bun.SelectQuery, f *query.Filter) *bun.SelectQuery {
	if f.Date != "" {
		q = q.Where(localStart+"::date = ?::date", f.Date)
	}
	if len(f.Courses) > 0 {
		q = q.Where("c.name IN (?)", bun.In(f.Courses))
	}
	if f.MinPrice != nil {
		q = q.Where("ts.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("ts.price <= ?", *f.MaxPrice)
	}
	if f.StartTime != "" {
		q = q.Where(localStart+"::time >= ?::time", f.StartTime)
	}
	if f.EndTime != "" {
		q = q.Where(localStart+"::time <= ?::time", f.EndTime)
	}
	if f.MinAvailability > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM unnest(ts.available_booking_sizes) AS n WHERE n >= ?)", f.MinAvailability)
	}

	if f.HasDemographics() {
		players := db.NewSelect().
			TableExpr("players AS p").
			ColumnExpr("1").
			Where("p.tee_slot_id = ts.id")
		if f.StartAge != nil {
			players = players.Where("p.age >= ?", *f.StartAge)
		}
		if f.EndAge != nil {
			players = players.Where("p.age <= ?", *f.EndAge)
		}
		if f.Gender != "" {
			players = players.Where("p.gender = ?", f.Gender)
		}
		if f.Race != "" {
			players = players.Where("p.race = ?", f.Race)
		}
		if f.SocialLevel != "" {
			players = players.Where("p.social_level = ?", f.SocialLevel)
		}
		if f.Handicap != "" {
			players = players.Where("p.handicap = ?", f.Handicap)
		}
		q = q.Where("EXISTS (?)", players)
	}
	return q
}
