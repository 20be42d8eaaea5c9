// Package memory is a process-local SnapshotStore.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/output"
)

// Store keeps snapshots in a map. Results are copied in and out, so callers never share
// a tally with the store.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]models.Snapshot
}

func New() *Store {
	return &Store{snapshots: map[string]models.Snapshot{}}
}

// GetSnapshot returns a copy of the stored snapshot or output.ErrSnapshotNotFound.
func (s *Store) GetSnapshot(_ context.Context, address string) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[address]
	if !ok {
		return nil, output.ErrSnapshotNotFound
	}
	snap.Result = snap.Result.Clone()
	return &snap, nil
}

// WriteSnapshot stores a copy of snapshot. A watermark lower than the stored one is
// rejected with output.ErrWatermarkRegression.
func (s *Store) WriteSnapshot(_ context.Context, snapshot *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.snapshots[snapshot.Address]; ok && snapshot.MaxLt < prev.MaxLt {
		return output.ErrWatermarkRegression
	}
	snap := *snapshot
	snap.Result = snapshot.Result.Clone()
	s.snapshots[snapshot.Address] = snap
	return nil
}

// ListProposals returns the tracked addresses in lexical order.
func (s *Store) ListProposals(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addresses := make([]string, 0, len(s.snapshots))
	for addr := range s.snapshots {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	return addresses, nil
}

func (s *Store) Close() error { return nil }
