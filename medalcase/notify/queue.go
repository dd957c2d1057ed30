package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// Entry is the minimal identifying data queued at event time. The
// flush path re-reads everything else fresh from the source store, so
// an entry never carries values that could go stale during the burst.
type Entry struct {
	ProfileID     int64  `json:"profile_id"`
	AchievementID int64  `json:"achievement_id"`
	GrantID       int64  `json:"grant_id"`
	SourceType    string `json:"source_type"`
	Series        string `json:"series"`
	Tier          int    `json:"tier"`
}

// Loader re-fetches entities at flush time.
type Loader interface {
	Achievement(ctx context.Context, id int64) (*models.Achievement, error)
}

// Dispatcher turns a flushed payload into a stored notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *models.Notification) error
}

// Queue batches in-flight achievement events in the transient store
// and flushes them into consolidated notifications at completion
// points. All store failures are logged and swallowed: a notification
// must never fail the business operation that produced it, and an
// entry expiring unflushed is an accepted silent loss.
type Queue struct {
	store    Store
	loader   Loader
	dispatch Dispatcher

	singleTTL time.Duration
	listTTL   time.Duration
}

func NewQueue(store Store, loader Loader, dispatch Dispatcher, singleTTL, listTTL time.Duration) *Queue {
	if singleTTL <= 0 {
		singleTTL = 2 * time.Hour
	}
	if listTTL <= 0 {
		listTTL = 30 * time.Minute
	}
	return &Queue{
		store:     store,
		loader:    loader,
		dispatch:  dispatch,
		singleTTL: singleTTL,
		listTTL:   listTTL,
	}
}

func singleKey(profileID, contextKey int64) string {
	return fmt.Sprintf("notify:single:%d:%d", profileID, contextKey)
}

func listKey(profileID int64) string {
	return fmt.Sprintf("notify:batch:%d", profileID)
}

// DeferSingle queues a one-off event keyed by (profile, context) for a
// later flush. Used for rare achievement types whose derived stats are
// not final at event time.
func (q *Queue) DeferSingle(ctx context.Context, profileID, contextKey int64, e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("Failed to encode deferred notification",
			slog.String("type", "error"),
			slog.Any("error", err))
		return
	}

	if err := q.store.Set(ctx, singleKey(profileID, contextKey), data, q.singleTTL); err != nil {
		slog.Error("Failed to queue deferred notification",
			slog.String("type", "error"),
			slog.Int64("profile_id", profileID),
			slog.Any("error", err))
	}
}

// FlushSingle dispatches the deferred entry for (profile, context) and
// deletes the key. An absent key means the entry was already flushed,
// expired, or never queued; flush is then a silent no-op.
func (q *Queue) FlushSingle(ctx context.Context, profileID, contextKey int64) {
	key := singleKey(profileID, contextKey)

	data, found, err := q.store.Get(ctx, key)
	if err != nil {
		slog.Error("Failed to read deferred notification",
			slog.String("type", "error"),
			slog.Int64("profile_id", profileID),
			slog.Any("error", err))
		return
	}
	if !found {
		return
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Error("Failed to decode deferred notification",
			slog.String("type", "error"),
			slog.Any("error", err))
		_ = q.store.Delete(ctx, key)
		return
	}

	q.dispatchEntry(ctx, e)

	if err := q.store.Delete(ctx, key); err != nil {
		slog.Error("Failed to delete deferred notification key",
			slog.String("type", "error"),
			slog.Any("error", err))
	}
}

// Append adds an event to the profile's consolidation list.
func (q *Queue) Append(ctx context.Context, e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("Failed to encode queued notification",
			slog.String("type", "error"),
			slog.Any("error", err))
		return
	}

	if err := q.store.PushList(ctx, listKey(e.ProfileID), data, q.listTTL); err != nil {
		slog.Error("Failed to append queued notification",
			slog.String("type", "error"),
			slog.Int64("profile_id", e.ProfileID),
			slog.Any("error", err))
	}
}

// FlushProfile consolidates the profile's queued events. Entries are
// grouped by series; within each group only the highest tier produces
// a notification and the rest are discarded. Entries without a series
// are dispatched individually. The whole key is deleted afterwards.
func (q *Queue) FlushProfile(ctx context.Context, profileID int64) {
	key := listKey(profileID)

	raw, err := q.store.GetList(ctx, key)
	if err != nil {
		slog.Error("Failed to read queued notifications",
			slog.String("type", "error"),
			slog.Int64("profile_id", profileID),
			slog.Any("error", err))
		return
	}
	if len(raw) == 0 {
		return
	}

	bestPerSeries := make(map[string]Entry)
	var order []string
	for _, data := range raw {
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			slog.Error("Failed to decode queued notification",
				slog.String("type", "error"),
				slog.Any("error", err))
			continue
		}

		if e.Series == "" {
			q.dispatchEntry(ctx, e)
			continue
		}

		best, ok := bestPerSeries[e.Series]
		if !ok {
			order = append(order, e.Series)
		}
		if !ok || e.Tier > best.Tier {
			bestPerSeries[e.Series] = e
		}
	}

	for _, series := range order {
		q.dispatchEntry(ctx, bestPerSeries[series])
	}

	if err := q.store.Delete(ctx, key); err != nil {
		slog.Error("Failed to delete queued notification key",
			slog.String("type", "error"),
			slog.Any("error", err))
	}

	slog.Debug("Queued notifications flushed",
		slog.String("type", "notify"),
		slog.Int64("profile_id", profileID),
		slog.Int("queued", len(raw)),
		slog.Int("notified", len(order)))
}

// dispatchEntry re-reads the definition fresh and hands the built
// payload to the dispatcher. A definition missing at flush time is a
// logged no-op.
func (q *Queue) dispatchEntry(ctx context.Context, e Entry) {
	def, err := q.loader.Achievement(ctx, e.AchievementID)
	if err != nil {
		slog.Warn("Skipping notification for missing achievement",
			slog.String("type", "notify"),
			slog.Int64("achievement_id", e.AchievementID),
			slog.Any("error", err))
		return
	}

	n := &models.Notification{
		ProfileID:  e.ProfileID,
		Message:    fmt.Sprintf("You earned %s!", def.Name),
		SourceType: e.SourceType,
		SourceID:   e.GrantID,
	}

	if err := q.dispatch.Dispatch(ctx, n); err != nil {
		slog.Error("Failed to dispatch notification",
			slog.String("type", "error"),
			slog.Int64("profile_id", e.ProfileID),
			slog.Any("error", err))
	}
}
