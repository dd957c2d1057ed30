package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// TitleRepository manages titles and their per-profile grants. Title
// grants are removed only by exact (source_type, source_id) reference,
// never wholesale by title.
type TitleRepository interface {
	GetTitle(ctx context.Context, id int64) (*models.Title, error)
	GrantTitle(ctx context.Context, db bun.IDB, grant *models.TitleGrant) error
	GetGrantsByProfile(ctx context.Context, profileID int64) ([]*models.TitleGrant, error)
	DeleteGrantsBySource(ctx context.Context, db bun.IDB, sourceType string, sourceID int64) error
}

type titleRepository struct {
	*BaseRepository
}

func NewTitleRepository(db *bun.DB) TitleRepository {
	return &titleRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *titleRepository) GetTitle(ctx context.Context, id int64) (*models.Title, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	title := new(models.Title)
	err := r.GetDB().NewSelect().
		Model(title).
		Where("t.id = ?", id).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "title", id, err)
	}
	return title, nil
}

// GrantTitle creates the title grant idempotently: a grant with the
// same profile, title and source reference is written once.
func (r *titleRepository) GrantTitle(ctx context.Context, db bun.IDB, grant *models.TitleGrant) error {
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now()
	}

	exists, err := db.NewSelect().
		Model((*models.TitleGrant)(nil)).
		Where("profile_id = ?", grant.ProfileID).
		Where("title_id = ?", grant.TitleID).
		Where("source_type = ?", grant.SourceType).
		Where("source_id = ?", grant.SourceID).
		Exists(ctx)
	if err != nil {
		return r.HandleError("grant", "title_grant", err)
	}
	if exists {
		return nil
	}

	_, err = db.NewInsert().
		Model(grant).
		Exec(ctx)
	return r.HandleError("grant", "title_grant", err)
}

func (r *titleRepository) GetGrantsByProfile(ctx context.Context, profileID int64) ([]*models.TitleGrant, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var grants []*models.TitleGrant
	err := r.GetDB().NewSelect().
		Model(&grants).
		Relation("Title").
		Where("tg.profile_id = ?", profileID).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get_by_profile", "title_grant", profileID, err)
	}
	return grants, nil
}

func (r *titleRepository) DeleteGrantsBySource(ctx context.Context, db bun.IDB, sourceType string, sourceID int64) error {
	_, err := db.NewDelete().
		Model((*models.TitleGrant)(nil)).
		Where("source_type = ?", sourceType).
		Where("source_id = ?", sourceID).
		Exec(ctx)
	return r.HandleError("delete_by_source", "title_grant", err)
}
