package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Achievement struct {
	bun.BaseModel `bun:"table:achievements,alias:a"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Slug        string `bun:"slug,notnull,unique"`
	Name        string `bun:"name,notnull"`
	Description string `bun:"description,notnull"`
	Kind        string `bun:"kind,notnull"` // badge, milestone

	// Badge-only fields: tiers of one family share a series key.
	Series     string `bun:"series"`
	Tier       int    `bun:"tier,notnull,default:0"`
	StageCount int    `bun:"stage_count,notnull,default:0"`

	CriteriaType string                 `bun:"criteria_type,notnull"`
	Criteria     map[string]interface{} `bun:"criteria,type:jsonb"`
	// RequiredValue mirrors criteria["target"]; kept in sync on every
	// definition write so display queries never parse the jsonb.
	RequiredValue int `bun:"required_value,notnull,default:0"`

	TitleID *int64 `bun:"title_id"`
	RoleID  string `bun:"role_id"`

	// EarnedCount must equal the number of grant rows for this
	// definition; mutated only by atomic SQL increment/decrement.
	EarnedCount int `bun:"earned_count,notnull,default:0"`

	// Manual definitions are awarded by hand and exempt from
	// auto-revocation.
	Manual bool `bun:"manual,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	Title *Title `bun:"rel:belongs-to,join:title_id=id"`
}

const (
	KindBadge     = "badge"
	KindMilestone = "milestone"
)

// Criteria type constants
const (
	CriteriaStageCount     = "stage_count"
	CriteriaPlatinumCount  = "platinum_count"
	CriteriaGamesCompleted = "games_completed"
	CriteriaTotalTrophies  = "total_trophies"
	CriteriaMonthComplete  = "month_complete" // month_complete_1 .. month_complete_12
)

// Target reads the numeric target out of the free-form criteria params,
// falling back to the denormalized copy.
func (a *Achievement) Target() int {
	if v, ok := a.Criteria["target"]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return a.RequiredValue
}

// SyncRequiredValue refreshes the denormalized target copy. Called by
// every code path that writes a definition.
func (a *Achievement) SyncRequiredValue() {
	if v, ok := a.Criteria["target"]; ok {
		if n, ok := v.(float64); ok {
			a.RequiredValue = int(n)
			return
		}
		if n, ok := v.(int); ok {
			a.RequiredValue = n
			return
		}
	}
	if a.Kind == KindBadge && a.StageCount > 0 {
		a.RequiredValue = a.StageCount
	}
}

func (a *Achievement) IsBadge() bool {
	return a.Kind == KindBadge
}
