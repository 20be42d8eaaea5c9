// Package verifier runs proposal result verifications: it fetches the transactions a cached
// snapshot has not seen, replays them onto the cached tally and reports whether the cached
// tally still holds.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ton-vote/verifier/internal/client"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/fetcher"
	"github.com/ton-vote/verifier/internal/metrics"
	"github.com/ton-vote/verifier/internal/output"
	"github.com/ton-vote/verifier/internal/reconciler"
	"github.com/ton-vote/verifier/internal/strategy"
	"github.com/ton-vote/verifier/internal/utils"
)

// State is the lifecycle of one verification. It only moves forward:
// Idle, Running, then Succeeded or Failed.
type State int

const (
	Idle State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// EvaluatorFactory builds the strategy evaluator for the accounts of one verification.
type EvaluatorFactory = strategy.EvaluatorFactory

// Verifier checks cached proposal tallies against the chain, using the endpoints of its
// session.
type Verifier struct {
	store     output.SnapshotStore
	session   *Session
	clients   client.Factory
	evaluator EvaluatorFactory
	observer  Observer
	metrics   *metrics.Metrics
}

type Option func(*Verifier)

func WithEvaluator(f EvaluatorFactory) Option {
	return func(v *Verifier) { v.evaluator = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// New returns a Verifier reading snapshots from store and building clients with clients.
// A nil observer discards progress events.
func New(store output.SnapshotStore, session *Session, clients client.Factory, observer Observer, opts ...Option) *Verifier {
	if observer == nil {
		observer = NopObserver{}
	}
	v := &Verifier{
		store:     store,
		session:   session,
		clients:   clients,
		observer:  observer,
		evaluator: strategy.NewEvaluator,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verification is a handle on a verification started with Start.
type Verification struct {
	Address string

	mu      sync.Mutex
	state   State
	outcome *Outcome
	done    chan struct{}
}

func (h *Verification) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Verification) Done() <-chan struct{} { return h.done }

// Wait blocks until the verification finishes or ctx is done.
func (h *Verification) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.outcome, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Verification) transition(state State, outcome *Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
	h.outcome = outcome
}

// Start stores override as the session endpoints and runs the verification in the
// background. A later Start for the same proposal neither cancels nor queues behind
// this one.
func (v *Verifier) Start(ctx context.Context, address string, override config.Endpoints) *Verification {
	h := &Verification{Address: address, state: Idle, done: make(chan struct{})}
	endpoints := v.session.Override(override)
	h.transition(Running, nil)
	go func() {
		defer close(h.done)
		outcome := v.run(ctx, address, endpoints)
		if outcome.Succeeded() {
			h.transition(Succeeded, outcome)
		} else {
			h.transition(Failed, outcome)
		}
	}()
	return h
}

// Verify is the blocking form of Start.
func (v *Verifier) Verify(ctx context.Context, address string, override config.Endpoints) *Outcome {
	outcome, _ := v.Start(ctx, address, override).Wait(context.Background())
	return outcome
}

func (v *Verifier) run(ctx context.Context, address string, endpoints config.Endpoints) *Outcome {
	started := time.Now()
	v.observer.VerificationStarted(address)

	outcome := v.reconcile(ctx, address, endpoints)
	outcome.Address = address
	outcome.Endpoints = endpoints
	outcome.Duration = time.Since(started)

	if outcome.Succeeded() {
		slog.Info("Proposal results verified", "proposal", address, "trivial", outcome.Trivial, "delta", outcome.Delta)
		v.observer.VerificationSucceeded(address, outcome)
	} else {
		slog.Warn("Proposal results verification failed", "proposal", address, "outcome", outcome.Kind, "error", outcome.Err)
		v.observer.VerificationFailed(address, outcome)
	}
	return outcome
}

func (v *Verifier) reconcile(ctx context.Context, address string, endpoints config.Endpoints) *Outcome {
	snapshot, err := v.store.GetSnapshot(ctx, address)
	if err != nil {
		return &Outcome{Kind: FetchError, Err: fmt.Errorf("failed to load cached snapshot: %w", err)}
	}
	if len(snapshot.Result) == 0 {
		return &Outcome{Kind: Success, Trivial: true, CachedLt: snapshot.MaxLt}
	}

	clients, err := v.clients(ctx, endpoints)
	if err != nil {
		return &Outcome{Kind: FetchError, CachedLt: snapshot.MaxLt, Err: err}
	}
	defer func() {
		if err := clients.Close(); err != nil {
			slog.Warn("Failed to close full node connection", "error", err)
		}
	}()

	fetched, err := fetcher.Fetch(ctx, clients.Indexer, clients.FullNode, address)
	if err != nil {
		return &Outcome{Kind: FetchError, CachedLt: snapshot.MaxLt, Err: err}
	}
	delta := utils.FilterSince(fetched.Transactions, snapshot.MaxLt)
	if v.metrics != nil {
		v.metrics.FetchedTransactions.WithLabelValues("history").Add(float64(len(fetched.Transactions)))
		v.metrics.FetchedTransactions.WithLabelValues("delta").Add(float64(len(delta)))
	}

	result, err := reconciler.New(v.evaluator(clients.FullNode)).
		Reconcile(ctx, snapshot.Result, snapshot.Metadata, delta)
	if err != nil {
		return &Outcome{Kind: FetchError, CachedLt: snapshot.MaxLt, MaxLt: fetched.MaxLt, Delta: len(delta), Err: err}
	}

	outcome := &Outcome{
		Kind:       Success,
		Trivial:    result.Trivial,
		CachedLt:   snapshot.MaxLt,
		MaxLt:      fetched.MaxLt,
		Delta:      len(delta),
		Recomputed: result.Recomputed,
		Diff:       result.Diff,
	}
	if !result.IsEqual {
		outcome.Kind = Mismatch
		outcome.Err = fmt.Errorf("%w: %d option(s) differ", ErrNotEqual, len(result.Diff))
	}
	return outcome
}

// IsNotFound reports whether the outcome failed because no snapshot is cached.
func (o *Outcome) IsNotFound() bool {
	return errors.Is(o.Err, output.ErrSnapshotNotFound)
}
