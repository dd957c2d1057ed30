package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// ProgressRepository stores the latest computed progress per
// (profile, achievement). Rows are upserted in place on every
// evaluation and never deleted while the profile exists.
type ProgressRepository interface {
	Upsert(ctx context.Context, db bun.IDB, profileID, achievementID int64, progress int) error
	Get(ctx context.Context, profileID, achievementID int64) (*models.AchievementProgress, error)
	GetByProfile(ctx context.Context, profileID int64) ([]*models.AchievementProgress, error)
}

type progressRepository struct {
	*BaseRepository
}

func NewProgressRepository(db *bun.DB) ProgressRepository {
	return &progressRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *progressRepository) Upsert(ctx context.Context, db bun.IDB, profileID, achievementID int64, progress int) error {
	now := time.Now()
	record := &models.AchievementProgress{
		ProfileID:     profileID,
		AchievementID: achievementID,
		Progress:      progress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := db.NewInsert().
		Model(record).
		On("CONFLICT (profile_id, achievement_id) DO UPDATE").
		Set("progress = EXCLUDED.progress").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return r.HandleError("upsert", "achievement_progress", err)
}

func (r *progressRepository) Get(ctx context.Context, profileID, achievementID int64) (*models.AchievementProgress, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	record := new(models.AchievementProgress)
	err := r.GetDB().NewSelect().
		Model(record).
		Where("ap.profile_id = ?", profileID).
		Where("ap.achievement_id = ?", achievementID).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "achievement_progress", profileID, err)
	}
	return record, nil
}

func (r *progressRepository) GetByProfile(ctx context.Context, profileID int64) ([]*models.AchievementProgress, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var records []*models.AchievementProgress
	err := r.GetDB().NewSelect().
		Model(&records).
		Relation("Achievement").
		Where("ap.profile_id = ?", profileID).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get_by_profile", "achievement_progress", profileID, err)
	}
	return records, nil
}
