// Package reconciler recomputes a proposal tally from the transactions since the cached
// watermark and compares it with the cached tally.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/results"
	"github.com/ton-vote/verifier/internal/strategy"
)

// Outcome is the result of one reconciliation. Recomputed and Diff are empty for a
// trivial match.
type Outcome struct {
	IsEqual    bool
	Trivial    bool
	Recomputed models.ProposalResult
	Diff       []results.FieldDiff
}

// Reconciler compares a cached tally with the tally recomputed from it.
type Reconciler struct {
	evaluator strategy.Evaluator
}

// New returns a Reconciler recomputing tallies with evaluator.
func New(evaluator strategy.Evaluator) *Reconciler {
	return &Reconciler{evaluator: evaluator}
}

// Reconcile replays delta onto cached and compares both sides after normalization.
// An empty cached tally makes no claim and is reported as a trivial match without
// consulting the evaluator.
func (r *Reconciler) Reconcile(ctx context.Context, cached models.ProposalResult, metadata models.ProposalMetadata, delta []models.Transaction) (*Outcome, error) {
	if len(cached) == 0 {
		return &Outcome{IsEqual: true, Trivial: true}, nil
	}

	recomputed, err := r.evaluator.Replay(ctx, cached.Clone(), metadata, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute tally: %w", err)
	}

	current := results.Normalize(cached)
	compareTo := results.Normalize(recomputed)
	slog.Debug("Comparing tallies", "current", current, "recomputed", compareTo)

	diff := results.Diff(current, compareTo)
	return &Outcome{
		IsEqual:    len(diff) == 0,
		Recomputed: recomputed,
		Diff:       diff,
	}, nil
}
