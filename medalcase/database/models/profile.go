package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile is the player identity. DiscordID is the prerequisite
// external-identity link for the role side effect; empty means no
// role is ever granted.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Username  string    `bun:"username,notnull,unique"`
	DiscordID string    `bun:"discord_id"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
