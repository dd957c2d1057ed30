package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RewardSlot is a limited, exclusive resource attached to an
// achievement (e.g. a one-per-event physical reward). Claiming one is
// the contended path: the slot row is locked for the duration of the
// check-then-act sequence.
type RewardSlot struct {
	bun.BaseModel `bun:"table:reward_slots,alias:rs"`

	ID            int64     `bun:"id,pk,autoincrement"`
	AchievementID int64     `bun:"achievement_id,notnull"`
	Name          string    `bun:"name,notnull"`
	Capacity      int       `bun:"capacity,notnull,default:1"`
	ClaimedCount  int       `bun:"claimed_count,notnull,default:0"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// SlotClaim records one profile's claim on a slot. Unique per
// (slot_id, profile_id): the race loser's insert fails and is
// translated to "already claimed".
type SlotClaim struct {
	bun.BaseModel `bun:"table:slot_claims,alias:sc"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SlotID    int64     `bun:"slot_id,notnull"`
	ProfileID int64     `bun:"profile_id,notnull"`
	ClaimedAt time.Time `bun:"claimed_at,notnull"`
}
