package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// SummaryRepository stores the per-profile gamification cache. Writes
// always replace the whole row; the aggregator never patches fields.
type SummaryRepository interface {
	Upsert(ctx context.Context, summary *models.GamificationSummary) error
	Get(ctx context.Context, profileID int64) (*models.GamificationSummary, error)
}

type summaryRepository struct {
	*BaseRepository
}

func NewSummaryRepository(db *bun.DB) SummaryRepository {
	return &summaryRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *summaryRepository) Upsert(ctx context.Context, summary *models.GamificationSummary) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	summary.UpdatedAt = time.Now()

	_, err := r.GetDB().NewInsert().
		Model(summary).
		On("CONFLICT (profile_id) DO UPDATE").
		Set("total_xp = EXCLUDED.total_xp").
		Set("series_xp = EXCLUDED.series_xp").
		Set("badges_earned = EXCLUDED.badges_earned").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(timeoutCtx)
	return r.HandleErrorWithID("upsert", "gamification_summary", summary.ProfileID, err)
}

func (r *summaryRepository) Get(ctx context.Context, profileID int64) (*models.GamificationSummary, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	summary := new(models.GamificationSummary)
	err := r.GetDB().NewSelect().
		Model(summary).
		Where("gs.profile_id = ?", profileID).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "gamification_summary", profileID, err)
	}
	return summary, nil
}
