package output

import (
	"context"
	"errors"

	"github.com/ton-vote/verifier/internal/models"
)

var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrWatermarkRegression = errors.New("snapshot watermark would move backwards")
)

type SnapshotStore interface {
	// GetSnapshot returns the cached metadata, tally and watermark of a proposal.
	GetSnapshot(ctx context.Context, address string) (*models.Snapshot, error)

	// WriteSnapshot upserts a snapshot. Writes with a lower MaxLt than the stored one are
	// rejected with ErrWatermarkRegression.
	WriteSnapshot(ctx context.Context, snapshot *models.Snapshot) error

	// ListProposals returns the addresses of all tracked proposals.
	ListProposals(ctx context.Context) ([]string, error)

	// Close closes the store.
	Close() error
}
