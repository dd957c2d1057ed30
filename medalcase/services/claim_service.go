package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
	"github.com/medalcase/medalcase/medalcase/database/repositories"
)

var (
	// ErrAlreadyClaimed covers both the pre-check hit and a race lost
	// at the uniqueness constraint; callers cannot tell them apart.
	ErrAlreadyClaimed = errors.New("you already claimed this reward")
	// ErrSlotFull means another profile took the remaining capacity.
	ErrSlotFull = errors.New("this reward was already claimed by someone else")
	// ErrSlotNotFound rejects claims against a nonexistent slot.
	ErrSlotNotFound = errors.New("reward slot does not exist")
)

// ClaimService handles the contended-resource path: claiming a
// limited reward slot. The slot row is locked for the duration of the
// check-then-act sequence and capacity is re-read inside the lock,
// never from values captured before it.
type ClaimService struct {
	slots repositories.SlotRepository
	tx    TxRunner
}

func NewClaimService(slots repositories.SlotRepository, tx TxRunner) *ClaimService {
	return &ClaimService{slots: slots, tx: tx}
}

func (s *ClaimService) ClaimSlot(ctx context.Context, slotID, profileID int64) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context, db bun.IDB) error {
		slot, err := s.slots.GetForUpdate(ctx, db, slotID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return ErrSlotNotFound
			}
			return fmt.Errorf("failed to lock reward slot %d: %w", slotID, err)
		}

		claimed, err := s.slots.HasClaim(ctx, db, slotID, profileID)
		if err != nil {
			return fmt.Errorf("failed to check existing claim: %w", err)
		}
		if claimed {
			return ErrAlreadyClaimed
		}

		if slot.ClaimedCount >= slot.Capacity {
			return ErrSlotFull
		}

		claim := &models.SlotClaim{
			SlotID:    slotID,
			ProfileID: profileID,
		}
		if err := s.slots.CreateClaim(ctx, db, claim); err != nil {
			if repositories.IsConflict(err) {
				return ErrAlreadyClaimed
			}
			return fmt.Errorf("failed to create claim: %w", err)
		}

		return s.slots.IncrementClaimedCount(ctx, db, slotID)
	})
}
