// Package scheduler flushes click counts accumulated in Redis to Postgres on
// a fixed interval, keeping counter writes off the redirect path.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jack/golang-shortlink-service/internal/repository"
)

// ClickStore receives the flushed counts.
type ClickStore interface {
	IncrementClickCountBy(ctx context.Context, code string, count int64) error
}

// ClickCounter is the pending-count side of the sync.
type ClickCounter interface {
	PendingClickCodes(ctx context.Context) ([]string, error)
	DrainPendingClicks(ctx context.Context, code string) (int64, error)
	RestorePendingClicks(ctx context.Context, code string, delta int64) error
}

type ClickSyncScheduler struct {
	store    ClickStore
	counter  ClickCounter
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewClickSyncScheduler(store ClickStore, counter ClickCounter, interval time.Duration) *ClickSyncScheduler {
	return &ClickSyncScheduler{
		store:    store,
		counter:  counter,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *ClickSyncScheduler) Start() {
	s.wg.Add(1)
	go s.run()
	log.Info().Dur("interval", s.interval).Msg("click sync scheduler started")
}

// Stop performs a final flush and waits for it to finish.
func (s *ClickSyncScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	log.Info().Msg("click sync scheduler stopped")
}

func (s *ClickSyncScheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.syncClickCounts()
		case <-s.stopCh:
			s.syncClickCounts()
			return
		}
	}
}

// SyncNow triggers an immediate flush.
func (s *ClickSyncScheduler) SyncNow() {
	s.syncClickCounts()
}

func (s *ClickSyncScheduler) syncClickCounts() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	codes, err := s.counter.PendingClickCodes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pending click codes")
		return
	}
	if len(codes) == 0 {
		return
	}

	var successCount, failCount int

	for _, code := range codes {
		count, err := s.counter.DrainPendingClicks(ctx, code)
		if err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to drain pending clicks")
			failCount++
			continue
		}
		if count == 0 {
			continue
		}

		if err := s.store.IncrementClickCountBy(ctx, code, count); err != nil {
			failCount++
			if errors.Is(err, repository.ErrLinkNotFound) {
				// Link deleted since the clicks accumulated; nothing to
				// restore the count into.
				log.Debug().Str("code", code).Int64("count", count).
					Msg("dropping pending clicks for deleted link")
				continue
			}
			log.Error().Err(err).Str("code", code).Msg("failed to flush click count")
			if restoreErr := s.counter.RestorePendingClicks(ctx, code, count); restoreErr != nil {
				log.Error().Err(restoreErr).Str("code", code).Int64("count", count).
					Msg("failed to restore pending clicks, counts lost")
			}
			continue
		}

		successCount++
	}

	if successCount > 0 || failCount > 0 {
		log.Info().Int("success", successCount).Int("failed", failCount).
			Msg("click count sync completed")
	}
}
