package events

import (
	"context"
	"log/slog"
	"sync"
)

type Type string

const (
	ProgressUpserted Type = "progress_upserted"
	GrantCreated     Type = "grant_created"
	GrantDeleted     Type = "grant_deleted"
)

// Event carries enough context for observers to react without reading
// back the row that triggered it.
type Event struct {
	Type          Type
	ProfileID     int64
	AchievementID int64
	GrantID       int64
}

type Observer func(ctx context.Context, ev Event)

// Bus is a small in-process event bus decoupling the write path from
// the aggregator and notification observers. Publish is fire-and-
// forget: observer panics are recovered and logged, never propagated
// into the publishing transaction.
type Bus struct {
	mu        sync.RWMutex
	observers map[Type][]Observer
}

func NewBus() *Bus {
	return &Bus{
		observers: make(map[Type][]Observer),
	}
}

func (b *Bus) Subscribe(t Type, obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[t] = append(b.observers[t], obs)
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	observers := b.observers[ev.Type]
	b.mu.RUnlock()

	for _, obs := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Event observer panicked",
						slog.String("type", "error"),
						slog.String("event", string(ev.Type)),
						slog.Any("panic", r))
				}
			}()
			obs(ctx, ev)
		}()
	}
}
