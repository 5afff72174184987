package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DefaultTimezone is used for courses created before their zone is known.
const DefaultTimezone = "America/Vancouver"

// DefaultMinBookingSize is the smallest party a course accepts unless configured.
const DefaultMinBookingSize = 2

// Course represents a golf course. Name is the identity used by scrape sources.
type Course struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Name           string    `bun:"name,notnull,unique" json:"name"`
	Latitude       *float64  `bun:"latitude" json:"latitude,omitempty"`
	Longitude      *float64  `bun:"longitude" json:"longitude,omitempty"`
	Timezone       string    `bun:"timezone,notnull,default:'America/Vancouver'" json:"timezone"`
	MinBookingSize int       `bun:"min_booking_size,notnull,default:2" json:"minBookingSize"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Zone returns the course timezone name, falling back to DefaultTimezone.
func (c *Course) Zone() string {
	if c.Timezone == "" {
		return DefaultTimezone
	}
	return c.Timezone
}

// MinSize returns the minimum booking size, falling back to DefaultMinBookingSize.
func (c *Course) MinSize() int {
	if c.MinBookingSize <= 0 {
		return DefaultMinBookingSize
	}
	return c.MinBookingSize
}
