package query

import (
	"time"

	"github.com/ze-codes/tee-time-scraper/tz"
)

// Pagination is the page metadata returned with every search.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// Paginate computes page metadata. TotalPages is ceil(total/limit).
func Paginate(total, page, limit int) Pagination {
	p := Pagination{CurrentPage: page, TotalItems: total, ItemsPerPage: limit}
	if limit > 0 {
		p.TotalPages = (total + limit - 1) / limit
	}
	return p
}

// Slot is the wire shape of a tee time.
type Slot struct {
	ID                    int64   `json:"id"`
	Course                string  `json:"course"`
	Datetime              string  `json:"datetime"`
	Timezone              string  `json:"timezone"`
	AvailableBookingSizes []int   `json:"available_booking_sizes"`
	Price                 float64 `json:"price"`
	Currency              string  `json:"currency"`
	StartingHole          int     `json:"starting_hole"`
}

// Page is one page of search results.
type Page struct {
	TeeTimes   []Slot     `json:"tee_times"`
	Pagination Pagination `json:"pagination"`
}

// FormatSlot renders start in the course's zone with an explicit offset.
// If the zone cannot be loaded the instant is rendered in UTC.
func FormatSlot(id int64, course, zone string, start time.Time, sizes []int, price float64, currency string, hole int) Slot {
	local := start.UTC()
	if loc, err := tz.Load(zone); err == nil {
		local = start.In(loc)
	}
	if sizes == nil {
		sizes = []int{}
	}
	return Slot{
		ID:                    id,
		Course:                course,
		Datetime:              local.Format(time.RFC3339),
		Timezone:              zone,
		AvailableBookingSizes: sizes,
		Price:                 price,
		Currency:              currency,
		StartingHole:          hole,
	}
}
