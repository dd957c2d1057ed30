package notify

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	list      [][]byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is the in-process Store backend: a sync.Map of TTL
// entries with a background reaper. Suitable for single-process
// deployments and tests.
type MemoryStore struct {
	entries sync.Map
	// listMu serializes list mutation; sync.Map only protects the
	// entry lookup, not the slice inside it.
	listMu sync.Mutex
	stopCh chan struct{}
	once   sync.Once
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stopCh: make(chan struct{}),
	}
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.entries.Store(key, &memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := v.(*memoryEntry)
	if entry.expired(time.Now()) {
		s.entries.Delete(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

func (s *MemoryStore) PushList(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.listMu.Lock()
	defer s.listMu.Unlock()

	now := time.Now()
	v, ok := s.entries.Load(key)
	if ok {
		entry := v.(*memoryEntry)
		if !entry.expired(now) {
			entry.list = append(entry.list, value)
			return nil
		}
	}
	s.entries.Store(key, &memoryEntry{
		list:      [][]byte{value},
		expiresAt: now.Add(ttl),
	})
	return nil
}

func (s *MemoryStore) GetList(_ context.Context, key string) ([][]byte, error) {
	s.listMu.Lock()
	defer s.listMu.Unlock()

	v, ok := s.entries.Load(key)
	if !ok {
		return nil, nil
	}
	entry := v.(*memoryEntry)
	if entry.expired(time.Now()) {
		s.entries.Delete(key)
		return nil, nil
	}
	out := make([][]byte, len(entry.list))
	copy(out, entry.list)
	return out, nil
}

// StartCleanupRoutine reaps expired entries in the background until
// Stop is called.
func (s *MemoryStore) StartCleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				s.entries.Range(func(key, value interface{}) bool {
					if value.(*memoryEntry).expired(now) {
						s.entries.Delete(key)
					}
					return true
				})
			case <-s.stopCh:
				return
			}
		}
	}()
}

func (s *MemoryStore) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}
