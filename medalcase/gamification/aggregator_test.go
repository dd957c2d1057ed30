package gamification

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

var testWeights = map[int]int{1: 250, 2: 75, 3: 250, 4: 75}

const testBonus = 3000

type stubProgress struct {
	records map[int64][]*models.AchievementProgress
}

func (s *stubProgress) GetByProfile(_ context.Context, profileID int64) ([]*models.AchievementProgress, error) {
	return s.records[profileID], nil
}

type stubGrants struct {
	grants map[int64][]*models.AchievementGrant
}

func (s *stubGrants) GetByProfile(_ context.Context, profileID int64) ([]*models.AchievementGrant, error) {
	return s.grants[profileID], nil
}

type countingStore struct {
	mu        sync.Mutex
	upserts   int
	byProfile map[int64]*models.GamificationSummary
}

func newCountingStore() *countingStore {
	return &countingStore{byProfile: make(map[int64]*models.GamificationSummary)}
}

func (s *countingStore) Upsert(_ context.Context, summary *models.GamificationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.byProfile[summary.ProfileID] = summary
	return nil
}

func badge(id int64, series string, tier int) *models.Achievement {
	return &models.Achievement{ID: id, Kind: models.KindBadge, Series: series, Tier: tier}
}

func milestone(id int64) *models.Achievement {
	return &models.Achievement{ID: id, Kind: models.KindMilestone}
}

func progressOf(profileID int64, def *models.Achievement, progress int) *models.AchievementProgress {
	return &models.AchievementProgress{
		ProfileID:     profileID,
		AchievementID: def.ID,
		Progress:      progress,
		Achievement:   def,
	}
}

func grantOf(profileID int64, def *models.Achievement) *models.AchievementGrant {
	return &models.AchievementGrant{
		ProfileID:     profileID,
		AchievementID: def.ID,
		Achievement:   def,
	}
}

func TestRecomputeTierWeightAndBonus(t *testing.T) {
	hunter1 := badge(1, "hunter", 1)
	store := newCountingStore()
	agg := NewAggregator(
		&stubProgress{records: map[int64][]*models.AchievementProgress{
			7: {progressOf(7, hunter1, 10)},
		}},
		&stubGrants{grants: map[int64][]*models.AchievementGrant{
			7: {grantOf(7, hunter1)},
		}},
		store, testWeights, testBonus, 0,
	)

	summary, err := agg.Recompute(context.Background(), 7)
	require.NoError(t, err)

	// 10 stages at 250 XP plus the completion bonus.
	assert.Equal(t, 5500, summary.TotalXP)
	assert.Equal(t, 5500, summary.SeriesXP["hunter"])
	assert.Equal(t, 1, summary.BadgesEarned)
	assert.Equal(t, 1, store.upserts)
}

func TestRecomputeMilestonesCarryNoXP(t *testing.T) {
	first := milestone(2)
	store := newCountingStore()
	agg := NewAggregator(
		&stubProgress{records: map[int64][]*models.AchievementProgress{
			7: {progressOf(7, first, 1)},
		}},
		&stubGrants{grants: map[int64][]*models.AchievementGrant{
			7: {grantOf(7, first)},
		}},
		store, testWeights, testBonus, 0,
	)

	summary, err := agg.Recompute(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalXP)
	assert.Equal(t, 0, summary.BadgesEarned)
	assert.Empty(t, summary.SeriesXP)
}

func TestRecomputeTotalMatchesSeriesSum(t *testing.T) {
	hunter2 := badge(1, "hunter", 2)
	completionist1 := badge(2, "completionist", 1)
	store := newCountingStore()
	agg := NewAggregator(
		&stubProgress{records: map[int64][]*models.AchievementProgress{
			7: {
				progressOf(7, hunter2, 4),
				progressOf(7, completionist1, 3),
			},
		}},
		&stubGrants{grants: map[int64][]*models.AchievementGrant{
			7: {grantOf(7, completionist1)},
		}},
		store, testWeights, testBonus, 0,
	)

	summary, err := agg.Recompute(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 4*75, summary.SeriesXP["hunter"])
	assert.Equal(t, 3*250+testBonus, summary.SeriesXP["completionist"])
	assert.Equal(t, summary.SumSeries(), summary.TotalXP)
	assert.Equal(t, 1, summary.BadgesEarned)
}

func TestRecomputeIsDeterministic(t *testing.T) {
	hunter1 := badge(1, "hunter", 1)
	store := newCountingStore()
	agg := NewAggregator(
		&stubProgress{records: map[int64][]*models.AchievementProgress{
			7: {progressOf(7, hunter1, 6)},
		}},
		&stubGrants{grants: map[int64][]*models.AchievementGrant{}},
		store, testWeights, testBonus, 0,
	)

	first, err := agg.Recompute(context.Background(), 7)
	require.NoError(t, err)
	second, err := agg.Recompute(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, first.TotalXP, second.TotalXP)
	assert.Equal(t, first.SeriesXP, second.SeriesXP)
	assert.Equal(t, first.BadgesEarned, second.BadgesEarned)
}

func TestMarkDirtyOutsideScopeRunsImmediately(t *testing.T) {
	store := newCountingStore()
	agg := NewAggregator(
		&stubProgress{records: map[int64][]*models.AchievementProgress{}},
		&stubGrants{grants: map[int64][]*models.AchievementGrant{}},
		store, testWeights, testBonus, 0,
	)

	agg.MarkDirty(context.Background(), 7)

	assert.Equal(t, 1, store.upserts)
}

func TestDeferCollapsesToOneRecomputePerProfile(t *testing.T) {
	store := newCountingStore()
	agg := NewAggregator(
		&stubProgress{records: map[int64][]*models.AchievementProgress{}},
		&stubGrants{grants: map[int64][]*models.AchievementGrant{}},
		store, testWeights, testBonus, 2,
	)
	ctx := context.Background()

	err := agg.Defer(ctx, func(ctx context.Context) error {
		for i := 0; i < 5; i++ {
			agg.MarkDirty(ctx, 7)
		}
		agg.MarkDirty(ctx, 8)
		agg.MarkDirty(ctx, 8)
		assert.Equal(t, 0, store.upserts)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, store.upserts)
	assert.Contains(t, store.byProfile, int64(7))
	assert.Contains(t, store.byProfile, int64(8))
}

func TestNestedDeferFlushesAtOutermostScope(t *testing.T) {
	store := newCountingStore()
	agg := NewAggregator(
		&stubProgress{records: map[int64][]*models.AchievementProgress{}},
		&stubGrants{grants: map[int64][]*models.AchievementGrant{}},
		store, testWeights, testBonus, 0,
	)
	ctx := context.Background()

	err := agg.Defer(ctx, func(ctx context.Context) error {
		inner := agg.Defer(ctx, func(ctx context.Context) error {
			agg.MarkDirty(ctx, 7)
			return nil
		})
		require.NoError(t, inner)
		assert.Equal(t, 0, store.upserts)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, store.upserts)
}

func TestDeferPropagatesErrorAndStillFlushes(t *testing.T) {
	store := newCountingStore()
	agg := NewAggregator(
		&stubProgress{records: map[int64][]*models.AchievementProgress{}},
		&stubGrants{grants: map[int64][]*models.AchievementGrant{}},
		store, testWeights, testBonus, 0,
	)

	err := agg.Defer(context.Background(), func(ctx context.Context) error {
		agg.MarkDirty(ctx, 7)
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, store.upserts)
}
