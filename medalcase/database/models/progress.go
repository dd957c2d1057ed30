package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AchievementProgress tracks the most recently computed progress value
// for one profile toward one definition, earned or not. One row per
// (profile, achievement), overwritten in place on every evaluation.
type AchievementProgress struct {
	bun.BaseModel `bun:"table:achievement_progress,alias:ap"`

	ID            int64     `bun:"id,pk,autoincrement"`
	ProfileID     int64     `bun:"profile_id,notnull"`
	AchievementID int64     `bun:"achievement_id,notnull"`
	Progress      int       `bun:"progress,notnull,default:0"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`

	Achievement *Achievement `bun:"rel:belongs-to,join:achievement_id=id"`
}
