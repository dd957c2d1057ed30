package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AchievementGrant records that a profile has earned a definition.
// The (profile_id, achievement_id) unique index is the idempotence
// anchor: concurrent grant attempts are totally ordered by it.
type AchievementGrant struct {
	bun.BaseModel `bun:"table:achievement_grants,alias:ag"`

	ID            int64     `bun:"id,pk,autoincrement"`
	ProfileID     int64     `bun:"profile_id,notnull"`
	AchievementID int64     `bun:"achievement_id,notnull"`
	GrantedAt     time.Time `bun:"granted_at,notnull"`

	Achievement *Achievement `bun:"rel:belongs-to,join:achievement_id=id"`
}

// Source type tags carried by TitleGrant and Notification rows so
// revocation can cascade by exact source reference.
const (
	SourceBadge     = "badge"
	SourceMilestone = "milestone"
)

// SourceType returns the tag for records spawned by this grant.
func (g *AchievementGrant) SourceType() string {
	if g.Achievement != nil && g.Achievement.Kind == KindMilestone {
		return SourceMilestone
	}
	return SourceBadge
}
