package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// SlotRepository manages limited reward slots and their claims. The
// claim path must lock the slot row and re-read capacity inside the
// lock, so the read and the counter bump live on bun.IDB and run
// inside the caller's transaction.
type SlotRepository interface {
	Get(ctx context.Context, id int64) (*models.RewardSlot, error)
	// GetForUpdate locks the slot row for the current transaction.
	GetForUpdate(ctx context.Context, db bun.IDB, id int64) (*models.RewardSlot, error)
	CreateClaim(ctx context.Context, db bun.IDB, claim *models.SlotClaim) error
	IncrementClaimedCount(ctx context.Context, db bun.IDB, id int64) error
	HasClaim(ctx context.Context, db bun.IDB, slotID, profileID int64) (bool, error)
}

type slotRepository struct {
	*BaseRepository
}

func NewSlotRepository(db *bun.DB) SlotRepository {
	return &slotRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *slotRepository) Get(ctx context.Context, id int64) (*models.RewardSlot, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	slot := new(models.RewardSlot)
	err := r.GetDB().NewSelect().
		Model(slot).
		Where("rs.id = ?", id).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "reward_slot", id, err)
	}
	return slot, nil
}

func (r *slotRepository) GetForUpdate(ctx context.Context, db bun.IDB, id int64) (*models.RewardSlot, error) {
	slot := new(models.RewardSlot)
	err := db.NewSelect().
		Model(slot).
		Where("rs.id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get_for_update", "reward_slot", id, err)
	}
	return slot, nil
}

func (r *slotRepository) CreateClaim(ctx context.Context, db bun.IDB, claim *models.SlotClaim) error {
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = time.Now()
	}

	_, err := db.NewInsert().
		Model(claim).
		Exec(ctx)
	return r.HandleError("create", "slot_claim", err)
}

func (r *slotRepository) IncrementClaimedCount(ctx context.Context, db bun.IDB, id int64) error {
	_, err := db.NewUpdate().
		Model((*models.RewardSlot)(nil)).
		Set("claimed_count = claimed_count + 1").
		Where("id = ?", id).
		Exec(ctx)
	return r.HandleErrorWithID("increment_claimed", "reward_slot", id, err)
}

func (r *slotRepository) HasClaim(ctx context.Context, db bun.IDB, slotID, profileID int64) (bool, error) {
	exists, err := db.NewSelect().
		Model((*models.SlotClaim)(nil)).
		Where("slot_id = ?", slotID).
		Where("profile_id = ?", profileID).
		Exists(ctx)
	if err != nil {
		return false, r.HandleError("has_claim", "slot_claim", err)
	}
	return exists, nil
}
