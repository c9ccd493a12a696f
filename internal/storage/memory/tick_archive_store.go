package memory

import (
	"context"
	"sort"
	"sync"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/storage"
)

// TickArchiveStore is an in-memory implementation of
// storage.TickArchiveStore.
type TickArchiveStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Tick // mint -> ticks
}

// NewTickArchiveStore creates a new in-memory tick archive.
func NewTickArchiveStore() *TickArchiveStore {
	return &TickArchiveStore{
		data: make(map[string][]domain.Tick),
	}
}

var _ storage.TickArchiveStore = (*TickArchiveStore)(nil)

// InsertBulk archives a batch of ticks.
func (s *TickArchiveStore) InsertBulk(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, tick := range ticks {
		if tick == nil || tick.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tick := range ticks {
		s.data[tick.Mint] = append(s.data[tick.Mint], *tick)
	}
	return nil
}

// GetByMint retrieves archived ticks for a token, timestamp ASC.
func (s *TickArchiveStore) GetByMint(_ context.Context, mint string) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Tick
	for _, tick := range s.data[mint] {
		copy := tick
		result = append(result, &copy)
	}
	sortTicks(result)
	return result, nil
}

// GetByTimeRange retrieves ticks within [start, end] inclusive.
func (s *TickArchiveStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Tick
	for _, tick := range s.data[mint] {
		if tick.TimestampMs >= start && tick.TimestampMs <= end {
			copy := tick
			result = append(result, &copy)
		}
	}
	sortTicks(result)
	return result, nil
}

func sortTicks(ticks []*domain.Tick) {
	sort.Slice(ticks, func(i, j int) bool {
		return ticks[i].TimestampMs < ticks[j].TimestampMs
	})
}
