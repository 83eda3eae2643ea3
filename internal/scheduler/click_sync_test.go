package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jack/golang-shortlink-service/internal/repository"
)

type mockStore struct {
	incrementFunc func(ctx context.Context, code string, count int64) error
	flushed       map[string]int64
}

func newMockStore() *mockStore {
	return &mockStore{flushed: make(map[string]int64)}
}

func (m *mockStore) IncrementClickCountBy(ctx context.Context, code string, count int64) error {
	if m.incrementFunc != nil {
		if err := m.incrementFunc(ctx, code, count); err != nil {
			return err
		}
	}
	m.flushed[code] += count
	return nil
}

type mockCounter struct {
	pending  map[string]int64
	restored map[string]int64
	listErr  error
}

func newMockCounter(pending map[string]int64) *mockCounter {
	return &mockCounter{pending: pending, restored: make(map[string]int64)}
}

func (m *mockCounter) PendingClickCodes(ctx context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var codes []string
	for code := range m.pending {
		codes = append(codes, code)
	}
	return codes, nil
}

func (m *mockCounter) DrainPendingClicks(ctx context.Context, code string) (int64, error) {
	count := m.pending[code]
	delete(m.pending, code)
	return count, nil
}

func (m *mockCounter) RestorePendingClicks(ctx context.Context, code string, delta int64) error {
	m.restored[code] += delta
	return nil
}

func TestSyncNow(t *testing.T) {
	t.Run("flushes pending counts to the store", func(t *testing.T) {
		store := newMockStore()
		counter := newMockCounter(map[string]int64{"abc123": 5, "my-link": 2})
		s := NewClickSyncScheduler(store, counter, time.Hour)

		s.SyncNow()

		if store.flushed["abc123"] != 5 || store.flushed["my-link"] != 2 {
			t.Errorf("flushed = %v, want abc123:5 my-link:2", store.flushed)
		}
		if len(counter.pending) != 0 {
			t.Errorf("pending counts not drained: %v", counter.pending)
		}
	})

	t.Run("restores the count when the store write fails", func(t *testing.T) {
		store := newMockStore()
		store.incrementFunc = func(ctx context.Context, code string, count int64) error {
			return errors.New("db down")
		}
		counter := newMockCounter(map[string]int64{"abc123": 5})
		s := NewClickSyncScheduler(store, counter, time.Hour)

		s.SyncNow()

		if counter.restored["abc123"] != 5 {
			t.Errorf("restored = %v, want abc123:5", counter.restored)
		}
	})

	t.Run("drops counts for links deleted since accumulation", func(t *testing.T) {
		store := newMockStore()
		store.incrementFunc = func(ctx context.Context, code string, count int64) error {
			return repository.ErrLinkNotFound
		}
		counter := newMockCounter(map[string]int64{"deleted": 3})
		s := NewClickSyncScheduler(store, counter, time.Hour)

		s.SyncNow()

		if counter.restored["deleted"] != 0 {
			t.Errorf("restored = %v, want nothing for a deleted link", counter.restored)
		}
	})

	t.Run("listing failure aborts the sync quietly", func(t *testing.T) {
		store := newMockStore()
		counter := newMockCounter(map[string]int64{"abc123": 5})
		counter.listErr = errors.New("redis down")
		s := NewClickSyncScheduler(store, counter, time.Hour)

		s.SyncNow()

		if len(store.flushed) != 0 {
			t.Errorf("flushed = %v, want nothing", store.flushed)
		}
	})
}

func TestStopPerformsFinalFlush(t *testing.T) {
	store := newMockStore()
	counter := newMockCounter(map[string]int64{"abc123": 4})
	s := NewClickSyncScheduler(store, counter, time.Hour)

	s.Start()
	s.Stop()

	if store.flushed["abc123"] != 4 {
		t.Errorf("flushed = %v, want abc123:4 after shutdown flush", store.flushed)
	}
}
