// Package strategy replays ballots onto a tally, weighting each voter by the proposal's
// voting-power strategy.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ton-vote/verifier/internal/client"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/results"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownStrategy = errors.New("unknown voting power strategy")

const maxWeightLookups = 8

// Evaluator recomputes a tally from a base tally and the transactions that followed it.
type Evaluator interface {
	Replay(ctx context.Context, base models.ProposalResult, metadata models.ProposalMetadata, delta []models.Transaction) (models.ProposalResult, error)
}

// Tallier weights ballots with holdings read from the full node at the snapshot time.
type Tallier struct {
	Accounts client.AccountReader
}

func NewTallier(accounts client.AccountReader) *Tallier {
	return &Tallier{Accounts: accounts}
}

// EvaluatorFactory builds the evaluator for the accounts of one set of clients.
type EvaluatorFactory func(accounts client.AccountReader) Evaluator

// NewEvaluator is the default EvaluatorFactory.
func NewEvaluator(accounts client.AccountReader) Evaluator {
	return NewTallier(accounts)
}

// Replay adds the weighted ballots found in delta to base. base is not modified.
func (t *Tallier) Replay(ctx context.Context, base models.ProposalResult, metadata models.ProposalMetadata, delta []models.Transaction) (models.ProposalResult, error) {
	tally := results.Normalize(base)
	if tally == nil {
		tally = results.Canonical{}
	}

	votes := LatestVotes(metadata, delta)
	weights := make([]float64, len(votes))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxWeightLookups)
	for i, vote := range votes {
		eg.Go(func() error {
			w, err := t.weight(egCtx, metadata, vote.Voter)
			if err != nil {
				return fmt.Errorf("failed to weight vote of %s: %w", vote.Voter, err)
			}
			weights[i] = w
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, vote := range votes {
		tally[vote.Option] += weights[i]
	}
	return tally.Result(), nil
}

func (t *Tallier) weight(ctx context.Context, metadata models.ProposalMetadata, voter string) (float64, error) {
	at := metadata.ProposalSnapshotTime
	switch metadata.VotingPowerStrategy {
	case models.TonBalance:
		return t.Accounts.TonBalance(ctx, voter, at)
	case models.JettonBalance:
		return t.Accounts.JettonBalance(ctx, voter, metadata.Jetton, at)
	case models.NftCollection:
		return t.Accounts.NftCount(ctx, voter, metadata.Nft, at)
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(metadata.VotingPowerStrategy))
	}
}
