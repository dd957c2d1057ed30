package repositories

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

const definitionCacheSize = 256

// AchievementRepository provides access to achievement definitions.
// Definitions are read-mostly; earned_count and required_value are the
// only fields this core mutates.
type AchievementRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Achievement, error)
	GetBySlug(ctx context.Context, slug string) (*models.Achievement, error)
	GetAll(ctx context.Context) ([]*models.Achievement, error)
	GetBySeries(ctx context.Context, series string) ([]*models.Achievement, error)
	Update(ctx context.Context, a *models.Achievement) error
	IncrementEarnedCount(ctx context.Context, db bun.IDB, id int64) error
	DecrementEarnedCount(ctx context.Context, db bun.IDB, id int64) error
}

type achievementRepository struct {
	*BaseRepository
	cache *lru.Cache
}

func NewAchievementRepository(db *bun.DB) AchievementRepository {
	cache, _ := lru.New(definitionCacheSize)
	return &achievementRepository{
		BaseRepository: NewBaseRepository(db),
		cache:          cache,
	}
}

func (r *achievementRepository) GetByID(ctx context.Context, id int64) (*models.Achievement, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached.(*models.Achievement), nil
	}

	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	achievement := new(models.Achievement)
	err := r.GetDB().NewSelect().
		Model(achievement).
		Relation("Title").
		Where("a.id = ?", id).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "achievement", id, err)
	}

	r.cache.Add(id, achievement)
	return achievement, nil
}

func (r *achievementRepository) GetBySlug(ctx context.Context, slug string) (*models.Achievement, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	achievement := new(models.Achievement)
	err := r.GetDB().NewSelect().
		Model(achievement).
		Relation("Title").
		Where("a.slug = ?", slug).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "achievement", slug, err)
	}
	return achievement, nil
}

func (r *achievementRepository) GetAll(ctx context.Context) ([]*models.Achievement, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var achievements []*models.Achievement
	err := r.GetDB().NewSelect().
		Model(&achievements).
		Relation("Title").
		Order("series ASC", "tier ASC").
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("get_all", "achievement", err)
	}
	return achievements, nil
}

func (r *achievementRepository) GetBySeries(ctx context.Context, series string) ([]*models.Achievement, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var achievements []*models.Achievement
	err := r.GetDB().NewSelect().
		Model(&achievements).
		Where("a.series = ?", series).
		Order("tier ASC").
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("get_by_series", "achievement", err)
	}
	return achievements, nil
}

// Update writes a definition, refreshing the denormalized
// required_value from the criteria parameters first.
func (r *achievementRepository) Update(ctx context.Context, a *models.Achievement) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	a.SyncRequiredValue()
	a.UpdatedAt = time.Now()

	_, err := r.GetDB().NewUpdate().
		Model(a).
		WherePK().
		Exec(timeoutCtx)
	if err != nil {
		return r.HandleErrorWithID("update", "achievement", a.ID, err)
	}

	r.cache.Remove(a.ID)
	return nil
}

// IncrementEarnedCount bumps the denormalized grant counter at the SQL
// level so concurrent grants never lose updates.
func (r *achievementRepository) IncrementEarnedCount(ctx context.Context, db bun.IDB, id int64) error {
	_, err := db.NewUpdate().
		Model((*models.Achievement)(nil)).
		Set("earned_count = earned_count + 1").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment earned_count for %d: %w", id, err)
	}

	r.cache.Remove(id)
	return nil
}

// DecrementEarnedCount lowers the counter, floored at zero.
func (r *achievementRepository) DecrementEarnedCount(ctx context.Context, db bun.IDB, id int64) error {
	_, err := db.NewUpdate().
		Model((*models.Achievement)(nil)).
		Set("earned_count = GREATEST(earned_count - 1, 0)").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to decrement earned_count for %d: %w", id, err)
	}

	r.cache.Remove(id)
	return nil
}
