package gamification

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/medalcase/medalcase/medalcase/database/models"
	"github.com/medalcase/medalcase/medalcase/logger"
)

const defaultRecomputeWorkers = 4

// ProgressSource and GrantSource are the repository slices the
// aggregator reads from.
type ProgressSource interface {
	GetByProfile(ctx context.Context, profileID int64) ([]*models.AchievementProgress, error)
}

type GrantSource interface {
	GetByProfile(ctx context.Context, profileID int64) ([]*models.AchievementGrant, error)
}

type SummaryStore interface {
	Upsert(ctx context.Context, summary *models.GamificationSummary) error
}

// Aggregator maintains the per-profile gamification summary. Recompute
// always derives fresh state from progress records and grants and
// writes the whole row, so concurrent or out-of-order invocations for
// one profile converge to the same result.
type Aggregator struct {
	progress ProgressSource
	grants   GrantSource
	store    SummaryStore

	weights map[int]int
	bonus   int
	workers int

	mu      sync.Mutex
	depth   int
	pending map[int64]struct{}
}

func NewAggregator(progress ProgressSource, grants GrantSource, store SummaryStore, weights map[int]int, bonus, workers int) *Aggregator {
	if workers <= 0 {
		workers = defaultRecomputeWorkers
	}
	return &Aggregator{
		progress: progress,
		grants:   grants,
		store:    store,
		weights:  weights,
		bonus:    bonus,
		workers:  workers,
		pending:  make(map[int64]struct{}),
	}
}

func (a *Aggregator) tierWeight(tier int) int {
	return a.weights[tier]
}

// Recompute rebuilds the summary for one profile from source records
// and upserts it wholesale.
func (a *Aggregator) Recompute(ctx context.Context, profileID int64) (*models.GamificationSummary, error) {
	records, err := a.progress.GetByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	grants, err := a.grants.GetByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	seriesXP := make(map[string]int)
	for _, rec := range records {
		if rec.Achievement == nil || !rec.Achievement.IsBadge() {
			continue
		}
		xp := rec.Progress * a.tierWeight(rec.Achievement.Tier)
		if xp > 0 {
			seriesXP[rec.Achievement.Series] += xp
		}
	}

	badgesEarned := 0
	for _, grant := range grants {
		if grant.Achievement == nil || !grant.Achievement.IsBadge() {
			continue
		}
		badgesEarned++
		seriesXP[grant.Achievement.Series] += a.bonus
	}

	total := 0
	for _, xp := range seriesXP {
		total += xp
	}

	summary := &models.GamificationSummary{
		ProfileID:    profileID,
		TotalXP:      total,
		SeriesXP:     seriesXP,
		BadgesEarned: badgesEarned,
	}

	if err := a.store.Upsert(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// MarkDirty requests a recompute for the profile. Inside a deferral
// scope the profile is only recorded; otherwise the recompute runs
// immediately. Failures are logged and swallowed: a cache refresh must
// never fail the operation that triggered it.
func (a *Aggregator) MarkDirty(ctx context.Context, profileID int64) {
	a.mu.Lock()
	if a.depth > 0 {
		a.pending[profileID] = struct{}{}
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	if _, err := a.Recompute(ctx, profileID); err != nil {
		logger.LogError("Summary recompute failed", err,
			slog.Int64("profile_id", profileID))
	}
}

// Defer opens a deferral scope for the duration of fn. Recompute
// requests made inside the scope are collected and, on scope exit,
// flushed exactly once per distinct profile. Scopes nest; the flush
// happens when the outermost scope closes. The barrier is local to
// this process.
func (a *Aggregator) Defer(ctx context.Context, fn func(ctx context.Context) error) error {
	a.mu.Lock()
	a.depth++
	a.mu.Unlock()

	err := fn(ctx)

	a.mu.Lock()
	a.depth--
	var toFlush []int64
	if a.depth == 0 && len(a.pending) > 0 {
		toFlush = make([]int64, 0, len(a.pending))
		for id := range a.pending {
			toFlush = append(toFlush, id)
		}
		a.pending = make(map[int64]struct{})
	}
	a.mu.Unlock()

	if len(toFlush) > 0 {
		a.flush(ctx, toFlush)
	}
	return err
}

func (a *Aggregator) flush(ctx context.Context, profileIDs []int64) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, id := range profileIDs {
		profileID := id
		g.Go(func() error {
			if _, err := a.Recompute(gctx, profileID); err != nil {
				logger.LogError("Deferred summary recompute failed", err,
					slog.Int64("profile_id", profileID))
			}
			return nil
		})
	}

	_ = g.Wait()

	slog.Debug("Deferred summaries flushed",
		slog.String("type", "sys"),
		slog.Int("profiles", len(profileIDs)))
}
