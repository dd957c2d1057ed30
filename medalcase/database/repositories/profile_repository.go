package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

type ProfileRepository interface {
	Get(ctx context.Context, id int64) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
}

type profileRepository struct {
	*BaseRepository
}

func NewProfileRepository(db *bun.DB) ProfileRepository {
	return &profileRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *profileRepository) Get(ctx context.Context, id int64) (*models.Profile, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	profile := new(models.Profile)
	err := r.GetDB().NewSelect().
		Model(profile).
		Where("p.id = ?", id).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "profile", id, err)
	}
	return profile, nil
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	profile := new(models.Profile)
	err := r.GetDB().NewSelect().
		Model(profile).
		Where("p.username = ?", username).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "profile", username, err)
	}
	return profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := r.GetDB().NewInsert().
		Model(profile).
		Exec(timeoutCtx)
	return r.HandleError("create", "profile", err)
}
