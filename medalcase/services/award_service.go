package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/criteria"
	"github.com/medalcase/medalcase/medalcase/database/models"
	"github.com/medalcase/medalcase/medalcase/database/repositories"
	"github.com/medalcase/medalcase/medalcase/events"
	"github.com/medalcase/medalcase/medalcase/gamification"
	"github.com/medalcase/medalcase/medalcase/notify"
)

// ErrAlreadyGranted is the outcome of re-running a grant that already
// exists. It is the idempotent no-op signal, not a system error.
var ErrAlreadyGranted = errors.New("achievement already granted")

// EvaluationReport summarizes one batch evaluation pass.
type EvaluationReport struct {
	Evaluated int
	Granted   int
	Skipped   int
}

// AwardService orchestrates evaluation and grants: it dispatches to
// the criteria registry, writes progress, creates grants inside one
// transaction, and triggers the aggregator and notification queue
// after commit.
type AwardService struct {
	achievements repositories.AchievementRepository
	progress     repositories.ProgressRepository
	grants       repositories.GrantRepository
	titles       repositories.TitleRepository
	profiles     repositories.ProfileRepository
	registry     *criteria.Registry
	aggregator   *gamification.Aggregator
	queue        *notify.Queue
	bus          *events.Bus
	roles        RoleGranter
	tx           TxRunner
}

func NewAwardService(
	achievements repositories.AchievementRepository,
	progress repositories.ProgressRepository,
	grants repositories.GrantRepository,
	titles repositories.TitleRepository,
	profiles repositories.ProfileRepository,
	registry *criteria.Registry,
	aggregator *gamification.Aggregator,
	queue *notify.Queue,
	bus *events.Bus,
	roles RoleGranter,
	tx TxRunner,
) *AwardService {
	return &AwardService{
		achievements: achievements,
		progress:     progress,
		grants:       grants,
		titles:       titles,
		profiles:     profiles,
		registry:     registry,
		aggregator:   aggregator,
		queue:        queue,
		bus:          bus,
		roles:        roles,
		tx:           tx,
	}
}

// HandleProgress is the inbound "progress changed" entry point for a
// single definition.
func (s *AwardService) HandleProgress(ctx context.Context, profileID, achievementID int64) error {
	def, err := s.achievements.GetByID(ctx, achievementID)
	if err != nil {
		return fmt.Errorf("failed to load achievement %d: %w", achievementID, err)
	}

	shared := criteria.Cache{}
	_, err = s.evaluateOne(ctx, profileID, def, shared)
	return err
}

// EvaluateProfile re-evaluates every definition for one profile, the
// way a full sync pass does. The whole batch runs inside one deferral
// scope so the summary is recomputed once, after the burst, and shares
// one criteria cache so per-profile aggregates are fetched once. The
// pass is its own unit of work, so both deferral shapes it filled are
// flushed before it returns: the consolidation list for badges and the
// keyed singles for any milestones granted along the way.
func (s *AwardService) EvaluateProfile(ctx context.Context, profileID int64) (*EvaluationReport, error) {
	report := &EvaluationReport{}
	var milestones []int64

	err := s.aggregator.Defer(ctx, func(ctx context.Context) error {
		defs, err := s.achievements.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load achievement definitions: %w", err)
		}

		shared := criteria.Cache{}
		for _, def := range defs {
			granted, err := s.evaluateOne(ctx, profileID, def, shared)
			if err != nil {
				if errors.Is(err, criteria.ErrNoHandler) {
					report.Skipped++
					continue
				}
				return err
			}
			report.Evaluated++
			if granted {
				report.Granted++
				if def.Kind == models.KindMilestone {
					milestones = append(milestones, def.ID)
				}
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	s.queue.FlushProfile(ctx, profileID)
	for _, achievementID := range milestones {
		s.queue.FlushSingle(ctx, profileID, achievementID)
	}
	return report, nil
}

// FlushDeferred is the completion point for single-event deferrals,
// called at the end of the unit of work that queued them.
func (s *AwardService) FlushDeferred(ctx context.Context, profileID, contextKey int64) {
	s.queue.FlushSingle(ctx, profileID, contextKey)
}

// evaluateOne runs the handler for one definition and grants on
// newly-achieved. An unregistered criteria type propagates ErrNoHandler
// so batch callers can skip-and-count.
func (s *AwardService) evaluateOne(ctx context.Context, profileID int64, def *models.Achievement, shared criteria.Cache) (bool, error) {
	result, err := s.registry.Evaluate(ctx, def.CriteriaType, profileID, def, shared)
	if err != nil {
		if errors.Is(err, criteria.ErrNoHandler) {
			slog.Warn("Skipping achievement with unregistered criteria type",
				slog.String("type", "sys"),
				slog.String("criteria_type", def.CriteriaType),
				slog.String("slug", def.Slug))
			return false, err
		}
		return false, fmt.Errorf("failed to evaluate %s: %w", def.Slug, err)
	}

	return s.apply(ctx, profileID, def, result)
}

// apply persists the evaluation result: progress is upserted always;
// a grant is created only on first achievement. Side effects that
// touch external systems run strictly after commit.
func (s *AwardService) apply(ctx context.Context, profileID int64, def *models.Achievement, result criteria.Result) (bool, error) {
	created := false
	grant := &models.AchievementGrant{
		ProfileID:     profileID,
		AchievementID: def.ID,
		Achievement:   def,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context, db bun.IDB) error {
		if err := s.progress.Upsert(ctx, db, profileID, def.ID, result.Progress); err != nil {
			return err
		}
		if !result.Achieved {
			return nil
		}

		var err error
		created, err = s.grants.Create(ctx, db, grant)
		if err != nil {
			// A lost race at the uniqueness boundary is the same
			// "already granted" outcome as a pre-existing grant.
			if repositories.IsConflict(err) {
				created = false
				return nil
			}
			return err
		}
		if !created {
			return nil
		}

		if err := s.achievements.IncrementEarnedCount(ctx, db, def.ID); err != nil {
			return err
		}

		if def.TitleID != nil {
			titleGrant := &models.TitleGrant{
				ProfileID:  profileID,
				TitleID:    *def.TitleID,
				SourceType: grant.SourceType(),
				SourceID:   grant.ID,
			}
			if err := s.titles.GrantTitle(ctx, db, titleGrant); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply evaluation for %s: %w", def.Slug, err)
	}

	// Post-commit: aggregation and notifications never roll back the
	// grant, and the role side effect only fires for committed state.
	s.bus.Publish(ctx, events.Event{
		Type:          events.ProgressUpserted,
		ProfileID:     profileID,
		AchievementID: def.ID,
	})

	if created {
		s.bus.Publish(ctx, events.Event{
			Type:          events.GrantCreated,
			ProfileID:     profileID,
			AchievementID: def.ID,
			GrantID:       grant.ID,
		})

		s.enqueueNotification(ctx, profileID, def, grant)
		s.grantRole(ctx, profileID, def)

		slog.Info("Achievement granted",
			slog.String("type", "sys"),
			slog.Int64("profile_id", profileID),
			slog.String("slug", def.Slug))
	}

	return created, nil
}

// enqueueNotification routes the event to the right deferral shape:
// one-off milestones use the single keyed deferral, badge tiers go to
// the per-profile consolidation list.
func (s *AwardService) enqueueNotification(ctx context.Context, profileID int64, def *models.Achievement, grant *models.AchievementGrant) {
	entry := notify.Entry{
		ProfileID:     profileID,
		AchievementID: def.ID,
		GrantID:       grant.ID,
		SourceType:    grant.SourceType(),
		Series:        def.Series,
		Tier:          def.Tier,
	}

	if def.Kind == models.KindMilestone {
		s.queue.DeferSingle(ctx, profileID, def.ID, entry)
		return
	}
	s.queue.Append(ctx, entry)
}

func (s *AwardService) grantRole(ctx context.Context, profileID int64, def *models.Achievement) {
	if s.roles == nil || def.RoleID == "" {
		return
	}

	profile, err := s.profiles.Get(ctx, profileID)
	if err != nil || profile.DiscordID == "" {
		return
	}

	if err := s.roles.GrantRole(ctx, profile.DiscordID, def.RoleID); err != nil {
		slog.Error("Failed to grant role",
			slog.String("type", "error"),
			slog.Int64("profile_id", profileID),
			slog.String("role_id", def.RoleID),
			slog.Any("error", err))
	}
}
