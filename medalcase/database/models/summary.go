package models

import (
	"time"

	"github.com/uptrace/bun"
)

// GamificationSummary is the denormalized per-profile XP cache. It is
// a pure function of progress records and grants: TotalXP always
// equals the sum of SeriesXP values, and the whole row is rebuilt
// wholesale on every recompute, never patched.
type GamificationSummary struct {
	bun.BaseModel `bun:"table:gamification_summaries,alias:gs"`

	ID           int64          `bun:"id,pk,autoincrement"`
	ProfileID    int64          `bun:"profile_id,notnull,unique"`
	TotalXP      int            `bun:"total_xp,notnull,default:0"`
	SeriesXP     map[string]int `bun:"series_xp,type:jsonb"`
	BadgesEarned int            `bun:"badges_earned,notnull,default:0"`
	UpdatedAt    time.Time      `bun:"updated_at,notnull"`
}

// SumSeries returns the sum of the per-series breakdown. Equal to
// TotalXP after every recompute.
func (s *GamificationSummary) SumSeries() int {
	total := 0
	for _, xp := range s.SeriesXP {
		total += xp
	}
	return total
}
