// Package client holds the two network clients used to read proposal contracts: an
// indexer-backed HTTP client (fast, possibly lagging) and a full-node gRPC client
// (authoritative).
package client

import (
	"context"
	"fmt"

	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/models"
	"google.golang.org/grpc"
)

// TransactionSource returns the full transaction history of a contract.
type TransactionSource interface {
	GetTransactions(ctx context.Context, address string) ([]models.Transaction, error)
}

// AccountReader reads voter holdings as of a point in time (unix seconds).
type AccountReader interface {
	TonBalance(ctx context.Context, owner string, atUtime int64) (float64, error)
	JettonBalance(ctx context.Context, owner, jetton string, atUtime int64) (float64, error)
	NftCount(ctx context.Context, owner, collection string, atUtime int64) (float64, error)
}

// Clients bundles the two connections built for one verification.
type Clients struct {
	Indexer  *IndexerClient
	FullNode *FullNodeClient
}

func (c *Clients) Close() error {
	if c.FullNode != nil {
		return c.FullNode.Close()
	}
	return nil
}

// Factory builds clients for a set of endpoints.
type Factory func(ctx context.Context, endpoints config.Endpoints) (*Clients, error)

// NewFactory returns a Factory applying the timeouts and page size of cfg. opts are passed
// to every full-node dial.
func NewFactory(cfg config.ClientConfig, opts ...grpc.DialOption) Factory {
	return func(ctx context.Context, endpoints config.Endpoints) (*Clients, error) {
		if err := endpoints.Validate(); err != nil {
			return nil, fmt.Errorf("invalid endpoints: %w", err)
		}
		indexer := NewIndexerClient(endpoints.IndexerEndpoint, endpoints.ApiKey, cfg.RequestTimeout, cfg.PageSize)
		fullNode, err := DialFullNode(endpoints.FullNodeEndpoint, cfg.RequestTimeout, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create full node client: %w", err)
		}
		return &Clients{Indexer: indexer, FullNode: fullNode}, nil
	}
}
