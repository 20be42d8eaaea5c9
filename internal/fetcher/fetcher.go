// Package fetcher retrieves the transaction history of a proposal contract from both the
// indexer and the full node and reconciles the two answers.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ton-vote/verifier/internal/client"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/utils"
	"golang.org/x/sync/errgroup"
)

// ErrClientsDisagree is returned when both sources report a transaction at the same
// logical time with different hashes.
var ErrClientsDisagree = errors.New("indexer and full node disagree")

// Result is the canonical history of a contract, ordered by ascending logical time.
type Result struct {
	Transactions []models.Transaction
	MaxLt        uint64
	// IndexerLag counts full-node transactions the indexer did not return.
	IndexerLag int
}

// Fetch queries both sources concurrently. Either failure fails the fetch; no partial
// result is returned. The full node is authoritative: its payloads win and transactions
// it lacks are only kept when the indexer reports them past the full node's head.
func Fetch(ctx context.Context, indexer, fullNode client.TransactionSource, address string) (*Result, error) {
	var indexed, authoritative []models.Transaction

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		txs, err := indexer.GetTransactions(egCtx, address)
		if err != nil {
			return fmt.Errorf("failed to fetch transactions from indexer: %w", err)
		}
		indexed = txs
		return nil
	})
	eg.Go(func() error {
		txs, err := fullNode.GetTransactions(egCtx, address)
		if err != nil {
			return fmt.Errorf("failed to fetch transactions from full node: %w", err)
		}
		authoritative = txs
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged, lag, err := merge(indexed, authoritative)
	if err != nil {
		return nil, err
	}
	if lag > 0 {
		slog.Warn("Indexer is behind full node", "address", address, "missing", lag)
	}

	return &Result{
		Transactions: merged,
		MaxLt:        utils.MaxLt(merged, 0),
		IndexerLag:   lag,
	}, nil
}

func merge(indexed, authoritative []models.Transaction) ([]models.Transaction, int, error) {
	byLt := make(map[uint64]models.Transaction, len(authoritative))
	var head uint64
	for _, tx := range authoritative {
		byLt[tx.Lt] = tx
		if tx.Lt > head {
			head = tx.Lt
		}
	}

	seen := make(map[uint64]bool, len(indexed))
	for _, tx := range indexed {
		seen[tx.Lt] = true
		existing, ok := byLt[tx.Lt]
		if ok {
			if existing.Hash != tx.Hash {
				return nil, 0, fmt.Errorf("%w: lt %d has hash %s on indexer and %s on full node",
					ErrClientsDisagree, tx.Lt, tx.Hash, existing.Hash)
			}
			continue
		}
		// The full node may trail the indexer by a few blocks; below its head a missing
		// transaction means the indexer is wrong.
		if tx.Lt <= head {
			return nil, 0, fmt.Errorf("%w: lt %d (%s) is unknown to the full node", ErrClientsDisagree, tx.Lt, tx.Hash)
		}
		byLt[tx.Lt] = tx
	}

	lag := 0
	for _, tx := range authoritative {
		if !seen[tx.Lt] {
			lag++
		}
	}

	merged := make([]models.Transaction, 0, len(byLt))
	for _, tx := range byLt {
		merged = append(merged, tx)
	}
	utils.SortByLt(merged)
	return merged, lag, nil
}
