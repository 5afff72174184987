package models

import "github.com/uptrace/bun"

// Player is a demographic record for someone already booked into a slot.
// Only the query service reads players; reconciliation never writes them.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID          int64   `bun:"id,pk,autoincrement" json:"id"`
	TeeSlotID   int64   `bun:"tee_slot_id,notnull" json:"teeSlotID"`
	Age         *int    `bun:"age" json:"age,omitempty"`
	Gender      *string `bun:"gender" json:"gender,omitempty"`
	Race        *string `bun:"race" json:"race,omitempty"`
	SocialLevel *string `bun:"social_level" json:"socialLevel,omitempty"`
	Handicap    *string `bun:"handicap" json:"handicap,omitempty"`
}
