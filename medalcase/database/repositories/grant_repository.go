package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// GrantRepository manages grant rows. The (profile_id, achievement_id)
// unique index is the idempotence anchor: Create reports whether this
// call actually inserted the row, so callers can distinguish a fresh
// grant from a re-run.
type GrantRepository interface {
	// Create inserts the grant guarded by the uniqueness constraint.
	// Returns created=false when the grant already existed; that is
	// the "already granted" outcome, not an error.
	Create(ctx context.Context, db bun.IDB, grant *models.AchievementGrant) (created bool, err error)
	Get(ctx context.Context, profileID, achievementID int64) (*models.AchievementGrant, error)
	GetByProfile(ctx context.Context, profileID int64) ([]*models.AchievementGrant, error)
	GetAllProfileIDs(ctx context.Context) ([]int64, error)
	Exists(ctx context.Context, profileID, achievementID int64) (bool, error)
	Delete(ctx context.Context, db bun.IDB, id int64) error
}

type grantRepository struct {
	*BaseRepository
}

func NewGrantRepository(db *bun.DB) GrantRepository {
	return &grantRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *grantRepository) Create(ctx context.Context, db bun.IDB, grant *models.AchievementGrant) (bool, error) {
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now()
	}

	res, err := db.NewInsert().
		Model(grant).
		On("CONFLICT (profile_id, achievement_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("create", "achievement_grant", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("create", "achievement_grant", err)
	}
	return affected > 0, nil
}

func (r *grantRepository) Get(ctx context.Context, profileID, achievementID int64) (*models.AchievementGrant, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	grant := new(models.AchievementGrant)
	err := r.GetDB().NewSelect().
		Model(grant).
		Relation("Achievement").
		Where("ag.profile_id = ?", profileID).
		Where("ag.achievement_id = ?", achievementID).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "achievement_grant", profileID, err)
	}
	return grant, nil
}

func (r *grantRepository) GetByProfile(ctx context.Context, profileID int64) ([]*models.AchievementGrant, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var grants []*models.AchievementGrant
	err := r.GetDB().NewSelect().
		Model(&grants).
		Relation("Achievement").
		Where("ag.profile_id = ?", profileID).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get_by_profile", "achievement_grant", profileID, err)
	}
	return grants, nil
}

// GetAllProfileIDs lists distinct profiles holding at least one grant,
// for the reconciliation batch.
func (r *grantRepository) GetAllProfileIDs(ctx context.Context) ([]int64, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var ids []int64
	err := r.GetDB().NewSelect().
		Model((*models.AchievementGrant)(nil)).
		ColumnExpr("DISTINCT profile_id").
		Order("profile_id ASC").
		Scan(timeoutCtx, &ids)
	if err != nil {
		return nil, r.HandleError("get_all_profiles", "achievement_grant", err)
	}
	return ids, nil
}

func (r *grantRepository) Exists(ctx context.Context, profileID, achievementID int64) (bool, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	exists, err := r.GetDB().NewSelect().
		Model((*models.AchievementGrant)(nil)).
		Where("profile_id = ?", profileID).
		Where("achievement_id = ?", achievementID).
		Exists(timeoutCtx)
	if err != nil {
		return false, r.HandleError("exists", "achievement_grant", err)
	}
	return exists, nil
}

func (r *grantRepository) Delete(ctx context.Context, db bun.IDB, id int64) error {
	_, err := db.NewDelete().
		Model((*models.AchievementGrant)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return r.HandleErrorWithID("delete", "achievement_grant", id, err)
}
