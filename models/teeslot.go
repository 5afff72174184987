package models

import (
	"slices"
	"time"

	"github.com/uptrace/bun"
)

// TeeSlot is one bookable tee time. (CourseID, StartTime) is unique and
// StartTime is always stored in UTC. Slots are never deleted: an empty
// AvailableBookingSizes marks a slot that is no longer offered.
type TeeSlot struct {
	bun.BaseModel `bun:"table:tee_slots,alias:ts"`

	ID                    int64     `bun:"id,pk,autoincrement" json:"id"`
	CourseID              int64     `bun:"course_id,notnull,unique:tee_slots_course_start" json:"courseID"`
	StartTime             time.Time `bun:"start_time,notnull,type:timestamptz,unique:tee_slots_course_start" json:"startTime"`
	Price                 float64   `bun:"price,notnull,type:numeric(10,2)" json:"price"`
	Currency              string    `bun:"currency,notnull" json:"currency"`
	AvailableBookingSizes []int     `bun:"available_booking_sizes,array,notnull,default:'{}'" json:"availableBookingSizes"`
	StartingHole          int       `bun:"starting_hole,notnull,default:1" json:"startingHole"`
	CreatedAt             time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt             time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Course *Course `bun:"rel:belongs-to,join:course_id=id" json:"-"`
}

// Open reports whether any party size is still bookable.
func (s *TeeSlot) Open() bool {
	return len(s.AvailableBookingSizes) > 0
}

// SameOffer reports whether o carries the same price, currency, availability
// and starting hole as s.
func (s *TeeSlot) SameOffer(o *TeeSlot) bool {
	return s.Price == o.Price &&
		s.Currency == o.Currency &&
		s.StartingHole == o.StartingHole &&
		slices.Equal(s.AvailableBookingSizes, o.AvailableBookingSizes)
}
