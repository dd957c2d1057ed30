package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ProfileGameStat is per-game source data written by the upstream
// ingestion pipeline. This core only reads it when evaluating criteria.
type ProfileGameStat struct {
	bun.BaseModel `bun:"table:profile_game_stats,alias:pgs"`

	ID            int64      `bun:"id,pk,autoincrement"`
	ProfileID     int64      `bun:"profile_id,notnull"`
	GameID        int64      `bun:"game_id,notnull"`
	Platinum      bool       `bun:"platinum,notnull,default:false"`
	Trophies      int        `bun:"trophies,notnull,default:0"`
	CompletionPct float64    `bun:"completion_pct,notnull,default:0"`
	CompletedAt   *time.Time `bun:"completed_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull"`
}

// StageCompletion marks one completed sub-objective ("stage") of a
// badge tier. Unique per (profile, series, tier, stage_key); the
// stage_count criteria handler counts these rows.
type StageCompletion struct {
	bun.BaseModel `bun:"table:stage_completions,alias:stc"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ProfileID   int64     `bun:"profile_id,notnull"`
	Series      string    `bun:"series,notnull"`
	Tier        int       `bun:"tier,notnull"`
	StageKey    string    `bun:"stage_key,notnull"`
	CompletedAt time.Time `bun:"completed_at,notnull"`
}
