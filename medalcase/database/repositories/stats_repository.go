package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// StatsRepository reads the source data the criteria handlers evaluate
// against. All of it is written by the upstream ingestion pipeline;
// this core never mutates it.
type StatsRepository interface {
	PlatinumCount(ctx context.Context, profileID int64) (int, error)
	GamesCompleted(ctx context.Context, profileID int64) (int, error)
	TotalTrophies(ctx context.Context, profileID int64) (int, error)
	StageCount(ctx context.Context, profileID int64, series string, tier int) (int, error)
	TotalStageCount(ctx context.Context, profileID int64) (int, error)
	MonthCompletions(ctx context.Context, profileID int64, month int) (int, error)
}

type statsRepository struct {
	*BaseRepository
}

func NewStatsRepository(db *bun.DB) StatsRepository {
	return &statsRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *statsRepository) PlatinumCount(ctx context.Context, profileID int64) (int, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.GetDB().NewSelect().
		Model((*models.ProfileGameStat)(nil)).
		Where("profile_id = ?", profileID).
		Where("platinum = true").
		Count(timeoutCtx)
	return count, r.HandleError("platinum_count", "profile_game_stat", err)
}

func (r *statsRepository) GamesCompleted(ctx context.Context, profileID int64) (int, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.GetDB().NewSelect().
		Model((*models.ProfileGameStat)(nil)).
		Where("profile_id = ?", profileID).
		Where("completion_pct >= 100").
		Count(timeoutCtx)
	return count, r.HandleError("games_completed", "profile_game_stat", err)
}

func (r *statsRepository) TotalTrophies(ctx context.Context, profileID int64) (int, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var total int
	err := r.GetDB().NewSelect().
		Model((*models.ProfileGameStat)(nil)).
		ColumnExpr("COALESCE(SUM(trophies), 0)").
		Where("profile_id = ?", profileID).
		Scan(timeoutCtx, &total)
	return total, r.HandleError("total_trophies", "profile_game_stat", err)
}

func (r *statsRepository) StageCount(ctx context.Context, profileID int64, series string, tier int) (int, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.GetDB().NewSelect().
		Model((*models.StageCompletion)(nil)).
		Where("profile_id = ?", profileID).
		Where("series = ?", series).
		Where("tier = ?", tier).
		Count(timeoutCtx)
	return count, r.HandleError("stage_count", "stage_completion", err)
}

func (r *statsRepository) TotalStageCount(ctx context.Context, profileID int64) (int, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.GetDB().NewSelect().
		Model((*models.StageCompletion)(nil)).
		Where("profile_id = ?", profileID).
		Count(timeoutCtx)
	return count, r.HandleError("total_stage_count", "stage_completion", err)
}

// MonthCompletions counts games the profile completed in the given
// calendar month, any year.
func (r *statsRepository) MonthCompletions(ctx context.Context, profileID int64, month int) (int, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.GetDB().NewSelect().
		Model((*models.ProfileGameStat)(nil)).
		Where("profile_id = ?", profileID).
		Where("completed_at IS NOT NULL").
		Where("EXTRACT(MONTH FROM completed_at) = ?", month).
		Count(timeoutCtx)
	return count, r.HandleError("month_completions", "profile_game_stat", err)
}
