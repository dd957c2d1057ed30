package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTarget(t *testing.T) {
	tests := []struct {
		name string
		def  Achievement
		want int
	}{
		{
			name: "jsonb float target",
			def:  Achievement{Criteria: map[string]interface{}{"target": float64(500)}},
			want: 500,
		},
		{
			name: "int target",
			def:  Achievement{Criteria: map[string]interface{}{"target": 25}},
			want: 25,
		},
		{
			name: "falls back to denormalized copy",
			def:  Achievement{RequiredValue: 10},
			want: 10,
		},
		{
			name: "non-numeric target falls back",
			def:  Achievement{Criteria: map[string]interface{}{"target": "ten"}, RequiredValue: 10},
			want: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.def.Target())
		})
	}
}

func TestSyncRequiredValue(t *testing.T) {
	def := Achievement{
		Criteria:      map[string]interface{}{"target": float64(2000)},
		RequiredValue: 500,
	}

	def.SyncRequiredValue()

	assert.Equal(t, 2000, def.RequiredValue)
}

func TestGrantSourceType(t *testing.T) {
	badge := &AchievementGrant{Achievement: &Achievement{Kind: KindBadge}}
	milestone := &AchievementGrant{Achievement: &Achievement{Kind: KindMilestone}}
	unloaded := &AchievementGrant{}

	assert.Equal(t, SourceBadge, badge.SourceType())
	assert.Equal(t, SourceMilestone, milestone.SourceType())
	assert.Equal(t, SourceBadge, unloaded.SourceType())
}

func TestSummarySumSeries(t *testing.T) {
	summary := &GamificationSummary{
		TotalXP:  5800,
		SeriesXP: map[string]int{"hunter": 5500, "completionist": 300},
	}

	assert.Equal(t, summary.TotalXP, summary.SumSeries())
}
