package criteria

import (
	"context"
	"fmt"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// StatsSource is the slice of the stats repository the built-in
// handlers need.
type StatsSource interface {
	PlatinumCount(ctx context.Context, profileID int64) (int, error)
	GamesCompleted(ctx context.Context, profileID int64) (int, error)
	TotalTrophies(ctx context.Context, profileID int64) (int, error)
	StageCount(ctx context.Context, profileID int64, series string, tier int) (int, error)
	TotalStageCount(ctx context.Context, profileID int64) (int, error)
	MonthCompletions(ctx context.Context, profileID int64, month int) (int, error)
}

// RegisterBuiltins wires the stock handlers into the registry. The
// twelve calendar-month handlers differ only by month number and are
// generated in a loop.
func RegisterBuiltins(reg *Registry, stats StatsSource) {
	reg.Register(models.CriteriaStageCount, stageCountHandler(stats))
	reg.Register(models.CriteriaPlatinumCount, cachedAggregateHandler(stats.PlatinumCount, "platinum_count"))
	reg.Register(models.CriteriaGamesCompleted, cachedAggregateHandler(stats.GamesCompleted, "games_completed"))
	reg.Register(models.CriteriaTotalTrophies, cachedAggregateHandler(stats.TotalTrophies, "total_trophies"))

	for m := 1; m <= 12; m++ {
		month := m
		reg.Register(
			fmt.Sprintf("%s_%d", models.CriteriaMonthComplete, month),
			monthCompleteHandler(stats, month),
		)
	}
}

// stageCountHandler counts completed sub-objectives. For a badge tier
// the count is scoped to its series and tier; milestones count stages
// across all series.
func stageCountHandler(stats StatsSource) HandlerFunc {
	return func(ctx context.Context, profileID int64, def *models.Achievement, _ Cache) (Result, error) {
		var count int
		var err error
		if def.IsBadge() {
			count, err = stats.StageCount(ctx, profileID, def.Series, def.Tier)
		} else {
			count, err = stats.TotalStageCount(ctx, profileID)
		}
		if err != nil {
			return Result{}, err
		}

		return Result{
			Achieved: count >= def.Target(),
			Progress: count,
		}, nil
	}
}

// cachedAggregateHandler wraps a per-profile aggregate in the shared
// batch cache so evaluating several definitions of the same criteria
// type hits the database once.
func cachedAggregateHandler(fetch func(context.Context, int64) (int, error), key string) HandlerFunc {
	return func(ctx context.Context, profileID int64, def *models.Achievement, shared Cache) (Result, error) {
		cacheKey := fmt.Sprintf("%s:%d", key, profileID)

		var count int
		if shared != nil {
			if v, ok := shared[cacheKey]; ok {
				count = v.(int)
				return Result{Achieved: count >= def.Target(), Progress: count}, nil
			}
		}

		count, err := fetch(ctx, profileID)
		if err != nil {
			return Result{}, err
		}
		if shared != nil {
			shared[cacheKey] = count
		}

		return Result{
			Achieved: count >= def.Target(),
			Progress: count,
		}, nil
	}
}

func monthCompleteHandler(stats StatsSource, month int) HandlerFunc {
	return func(ctx context.Context, profileID int64, def *models.Achievement, shared Cache) (Result, error) {
		cacheKey := fmt.Sprintf("month_completions:%d:%d", month, profileID)

		if shared != nil {
			if v, ok := shared[cacheKey]; ok {
				count := v.(int)
				return Result{Achieved: count >= def.Target(), Progress: count}, nil
			}
		}

		count, err := stats.MonthCompletions(ctx, profileID, month)
		if err != nil {
			return Result{}, err
		}
		if shared != nil {
			shared[cacheKey] = count
		}

		return Result{
			Achieved: count >= def.Target(),
			Progress: count,
		}, nil
	}
}
