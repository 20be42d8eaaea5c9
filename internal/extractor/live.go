package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SyncLive runs a sync pass immediately and then every interval until ctx is done. A failed
// pass is logged and retried on the next tick.
func SyncLive(ctx context.Context, s *Syncer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.SyncAll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("Sync pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SyncOnce is a single pass, for the one-shot CLI mode.
func SyncOnce(ctx context.Context, s *Syncer) error {
	if err := s.SyncAll(ctx); err != nil {
		return fmt.Errorf("failed to sync proposals: %w", err)
	}
	return nil
}
