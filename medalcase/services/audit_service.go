package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/criteria"
	"github.com/medalcase/medalcase/medalcase/database/models"
	"github.com/medalcase/medalcase/medalcase/database/repositories"
	"github.com/medalcase/medalcase/medalcase/events"
	"github.com/medalcase/medalcase/medalcase/gamification"
	"github.com/medalcase/medalcase/medalcase/logger"
)

// Audit categories scope which definitions the reconciliation pass
// re-checks.
const (
	CategoryAll    = "all"
	CategoryTitles = "titles"
	CategoryAwards = "awards"
)

// AuditOptions parameterize one reconciliation run.
type AuditOptions struct {
	// Commit applies revocations; false is the read-only preview.
	Commit bool
	// ProfileID scopes the run to one profile; zero means all.
	ProfileID int64
	// Category limits the pass to title-bearing definitions
	// (CategoryTitles) or runs everything (CategoryAwards, CategoryAll).
	Category string
	// IncludeExempt also re-checks manually awarded definitions, which
	// are otherwise permanently exempt from auto-revocation.
	IncludeExempt bool
}

// AuditReport is the operator-facing outcome of a run.
type AuditReport struct {
	ProfilesChecked int
	GrantsChecked   int
	Revoked         int
	Skipped         int
	FailedProfiles  []int64
}

// AuditService re-evaluates existing grants and revokes those no
// longer earned, cascading cleanup by exact source reference.
// Per-profile failures never abort the batch.
type AuditService struct {
	achievements  repositories.AchievementRepository
	progress      repositories.ProgressRepository
	grants        repositories.GrantRepository
	titles        repositories.TitleRepository
	notifications repositories.NotificationRepository
	registry      *criteria.Registry
	aggregator    *gamification.Aggregator
	bus           *events.Bus
	tx            TxRunner

	// gracePeriod skips grants younger than the window, tolerating
	// transient re-evaluation flakiness. Zero disables it.
	gracePeriod time.Duration
}

func NewAuditService(
	achievements repositories.AchievementRepository,
	progress repositories.ProgressRepository,
	grants repositories.GrantRepository,
	titles repositories.TitleRepository,
	notifications repositories.NotificationRepository,
	registry *criteria.Registry,
	aggregator *gamification.Aggregator,
	bus *events.Bus,
	tx TxRunner,
	gracePeriod time.Duration,
) *AuditService {
	return &AuditService{
		achievements:  achievements,
		progress:      progress,
		grants:        grants,
		titles:        titles,
		notifications: notifications,
		registry:      registry,
		aggregator:    aggregator,
		bus:           bus,
		tx:            tx,
		gracePeriod:   gracePeriod,
	}
}

// Run executes one reconciliation pass. The whole batch runs inside a
// deferral scope so each affected profile's summary is recomputed once
// after all revocations land.
func (s *AuditService) Run(ctx context.Context, opts AuditOptions) (*AuditReport, error) {
	report := &AuditReport{}

	var profileIDs []int64
	if opts.ProfileID != 0 {
		profileIDs = []int64{opts.ProfileID}
	} else {
		var err error
		profileIDs, err = s.grants.GetAllProfileIDs(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to list profiles with grants: %w", err)
		}
	}

	err := s.aggregator.Defer(ctx, func(ctx context.Context) error {
		for _, profileID := range profileIDs {
			report.ProfilesChecked++
			if err := s.auditProfile(ctx, profileID, opts, report); err != nil {
				report.FailedProfiles = append(report.FailedProfiles, profileID)
				slog.Error("Audit failed for profile",
					slog.String("type", "audit"),
					slog.Int64("profile_id", profileID),
					slog.Any("error", err))
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	logger.LogAudit("Audit run complete",
		slog.Bool("commit", opts.Commit),
		slog.Int("profiles", report.ProfilesChecked),
		slog.Int("grants", report.GrantsChecked),
		slog.Int("revoked", report.Revoked),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", len(report.FailedProfiles)))

	return report, nil
}

func (s *AuditService) auditProfile(ctx context.Context, profileID int64, opts AuditOptions, report *AuditReport) error {
	grants, err := s.grants.GetByProfile(ctx, profileID)
	if err != nil {
		return err
	}

	shared := criteria.Cache{}
	for _, grant := range grants {
		def := grant.Achievement
		if def == nil {
			report.Skipped++
			continue
		}
		if def.Manual && !opts.IncludeExempt {
			report.Skipped++
			continue
		}
		if opts.Category == CategoryTitles && def.TitleID == nil {
			report.Skipped++
			continue
		}
		if s.gracePeriod > 0 && time.Since(grant.GrantedAt) < s.gracePeriod {
			report.Skipped++
			continue
		}

		report.GrantsChecked++

		result, err := s.registry.Evaluate(ctx, def.CriteriaType, profileID, def, shared)
		if err != nil {
			if errors.Is(err, criteria.ErrNoHandler) {
				report.Skipped++
				continue
			}
			return err
		}
		if result.Achieved {
			continue
		}

		report.Revoked++
		if !opts.Commit {
			slog.Info("Would revoke grant",
				slog.String("type", "audit"),
				slog.Int64("profile_id", profileID),
				slog.String("slug", def.Slug),
				slog.Int("progress", result.Progress))
			continue
		}

		if err := s.revoke(ctx, grant, result.Progress); err != nil {
			return err
		}
	}

	return nil
}

// revoke removes exactly one grant and its cascade: the counter
// decrement, the title grants and notifications whose source matches
// this grant, and the progress record refreshed to the lower value.
func (s *AuditService) revoke(ctx context.Context, grant *models.AchievementGrant, freshProgress int) error {
	sourceType := grant.SourceType()

	err := s.tx.RunInTx(ctx, func(ctx context.Context, db bun.IDB) error {
		if err := s.grants.Delete(ctx, db, grant.ID); err != nil {
			return err
		}
		if err := s.achievements.DecrementEarnedCount(ctx, db, grant.AchievementID); err != nil {
			return err
		}
		if err := s.titles.DeleteGrantsBySource(ctx, db, sourceType, grant.ID); err != nil {
			return err
		}
		if err := s.notifications.DeleteBySource(ctx, db, sourceType, grant.ID); err != nil {
			return err
		}
		return s.progress.Upsert(ctx, db, grant.ProfileID, grant.AchievementID, freshProgress)
	})
	if err != nil {
		return fmt.Errorf("failed to revoke grant %d: %w", grant.ID, err)
	}

	s.bus.Publish(ctx, events.Event{
		Type:          events.GrantDeleted,
		ProfileID:     grant.ProfileID,
		AchievementID: grant.AchievementID,
		GrantID:       grant.ID,
	})

	slog.Info("Grant revoked",
		slog.String("type", "audit"),
		slog.Int64("profile_id", grant.ProfileID),
		slog.Int64("achievement_id", grant.AchievementID))

	return nil
}
