package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/ton-vote/verifier/internal/client"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/fetcher"
	"github.com/ton-vote/verifier/internal/metrics"
	"github.com/ton-vote/verifier/internal/output"
	"github.com/ton-vote/verifier/internal/strategy"
	"github.com/ton-vote/verifier/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Syncer folds new proposal transactions into the stored snapshots.
type Syncer struct {
	// Endpoints is read at the start of every pass, so an override stored by a
	// verification applies from the next pass on.
	Endpoints func() config.Endpoints
	Clients   client.Factory
	// Evaluator defaults to strategy.NewEvaluator.
	Evaluator strategy.EvaluatorFactory
	Store     output.SnapshotStore
	Metrics   *metrics.Metrics
	// MaxConcurrency bounds the proposals synced in parallel.
	MaxConcurrency uint
	// ShowProgress renders a progress bar over the proposals of a pass.
	ShowProgress bool
}

// SyncAll runs one pass over every stored proposal. A proposal failing to sync fails the
// pass after the others have finished.
func (s *Syncer) SyncAll(ctx context.Context) error {
	addresses, err := s.Store.ListProposals(ctx)
	if err != nil {
		return fmt.Errorf("failed to list proposals: %w", err)
	}
	if len(addresses) == 0 {
		slog.Info("No proposals to sync")
		return nil
	}
	slog.Info("Syncing proposals", "count", len(addresses))

	p, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer p.close()

	var bar *progressbar.ProgressBar
	if s.ShowProgress {
		bar = progressbar.NewOptions(len(addresses),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("Syncing proposals..."),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		if err := bar.RenderBlank(); err != nil {
			return fmt.Errorf("failed to render progress bar: %w", err)
		}
	}

	limit := int(s.MaxConcurrency)
	if limit <= 0 {
		limit = 1
	}
	var eg errgroup.Group
	eg.SetLimit(limit)
	errs := make([]error, len(addresses))
	for i, address := range addresses {
		if ctx.Err() != nil {
			slog.Info("Sync cancelled")
			break
		}
		eg.Go(func() error {
			if err := p.syncProposal(ctx, s, address); err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Error("Proposal sync error", "proposal", address, "error", err)
				}
				if s.Metrics != nil {
					s.Metrics.SyncErrors.Inc()
				}
				errs[i] = fmt.Errorf("proposal %s: %w", address, err)
			}
			if bar != nil {
				if err := bar.Add(1); err != nil {
					slog.Warn("Failed to update progress bar", "error", err)
				}
			}
			return nil
		})
	}
	_ = eg.Wait()

	if bar != nil {
		if err := bar.Finish(); err != nil {
			return fmt.Errorf("failed to finish progress bar: %w", err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return ctx.Err()
}

// pass holds the clients of one sync pass.
type pass struct {
	clients   *client.Clients
	evaluator strategy.Evaluator
}

func (s *Syncer) open(ctx context.Context) (*pass, error) {
	endpoints := s.Endpoints()
	clients, err := s.Clients(ctx, endpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to create clients for %s: %w", endpoints.IndexerEndpoint, err)
	}
	newEvaluator := s.Evaluator
	if newEvaluator == nil {
		newEvaluator = strategy.NewEvaluator
	}
	return &pass{clients: clients, evaluator: newEvaluator(clients.FullNode)}, nil
}

func (p *pass) close() {
	if err := p.clients.Close(); err != nil {
		slog.Warn("Failed to close clients", "error", err)
	}
}

// SyncProposal fetches the transactions past the stored watermark, replays them onto the
// stored tally and persists the new tally with the new watermark.
func (s *Syncer) SyncProposal(ctx context.Context, address string) error {
	p, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer p.close()
	return p.syncProposal(ctx, s, address)
}

func (p *pass) syncProposal(ctx context.Context, s *Syncer, address string) error {
	snapshot, err := s.Store.GetSnapshot(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	fetched, err := fetcher.Fetch(ctx, p.clients.Indexer, p.clients.FullNode, address)
	if err != nil {
		return err
	}
	delta := utils.FilterSince(fetched.Transactions, snapshot.MaxLt)
	if s.Metrics != nil {
		s.Metrics.FetchedTransactions.WithLabelValues("history").Add(float64(len(fetched.Transactions)))
		s.Metrics.FetchedTransactions.WithLabelValues("delta").Add(float64(len(delta)))
	}
	if len(delta) == 0 {
		slog.Debug("Proposal is up to date", "proposal", address, "maxLt", snapshot.MaxLt)
		return nil
	}

	result, err := p.evaluator.Replay(ctx, snapshot.Result, snapshot.Metadata, delta)
	if err != nil {
		return fmt.Errorf("failed to replay %d transactions: %w", len(delta), err)
	}

	snapshot.Result = result
	snapshot.MaxLt = utils.MaxLt(delta, snapshot.MaxLt)
	if err := s.Store.WriteSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if s.Metrics != nil {
		s.Metrics.Watermark.WithLabelValues(address).Set(float64(snapshot.MaxLt))
	}
	slog.Info("Proposal synced", "proposal", address, "delta", len(delta), "maxLt", strconv.FormatUint(snapshot.MaxLt, 10))
	return nil
}
