package verifier

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/ton-vote/verifier/internal/metrics"
)

// Observer receives the progress of verifications. Calls are made from the goroutine running
// the verification and must not block.
type Observer interface {
	VerificationStarted(address string)
	VerificationSucceeded(address string, outcome *Outcome)
	VerificationFailed(address string, outcome *Outcome)
}

type NopObserver struct{}

func (NopObserver) VerificationStarted(string)             {}
func (NopObserver) VerificationSucceeded(string, *Outcome) {}
func (NopObserver) VerificationFailed(string, *Outcome)    {}

// Observers fans every event out to each observer in order.
type Observers []Observer

func (o Observers) VerificationStarted(address string) {
	for _, obs := range o {
		obs.VerificationStarted(address)
	}
}

func (o Observers) VerificationSucceeded(address string, outcome *Outcome) {
	for _, obs := range o {
		obs.VerificationSucceeded(address, outcome)
	}
}

func (o Observers) VerificationFailed(address string, outcome *Outcome) {
	for _, obs := range o {
		obs.VerificationFailed(address, outcome)
	}
}

type LogObserver struct {
	Logger *slog.Logger
}

func (l LogObserver) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l LogObserver) VerificationStarted(address string) {
	l.logger().Info("Verifying results", "proposal", address)
}

func (l LogObserver) VerificationSucceeded(address string, outcome *Outcome) {
	l.logger().Info(outcome.Message(), "proposal", address, "duration", outcome.Duration)
}

func (l LogObserver) VerificationFailed(address string, outcome *Outcome) {
	l.logger().Error(outcome.Message(), "proposal", address, "outcome", outcome.Kind.String(), "diff", outcome.Diff)
}

type MetricsObserver struct {
	Metrics *metrics.Metrics
}

func (MetricsObserver) VerificationStarted(string) {}

func (m MetricsObserver) VerificationSucceeded(_ string, outcome *Outcome) {
	m.record(outcome)
}

func (m MetricsObserver) VerificationFailed(_ string, outcome *Outcome) {
	m.record(outcome)
}

func (m MetricsObserver) record(outcome *Outcome) {
	m.Metrics.Verifications.WithLabelValues(outcome.Kind.String()).Inc()
	m.Metrics.VerificationSeconds.Observe(outcome.Duration.Seconds())
}

// SpinnerObserver renders a terminal spinner while a verification runs and prints the
// outcome when it finishes.
type SpinnerObserver struct {
	Writer   io.Writer
	Interval time.Duration

	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
}

func NewSpinnerObserver(w io.Writer) *SpinnerObserver {
	return &SpinnerObserver{Writer: w, Interval: 100 * time.Millisecond}
}

func (s *SpinnerObserver) VerificationStarted(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()

	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.Writer),
		progressbar.OptionSetDescription(fmt.Sprintf("Verifying results of %s...", address)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	if err := s.bar.RenderBlank(); err != nil {
		slog.Warn("Failed to render spinner", "error", err)
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.spin(s.bar, s.stop, s.done)
}

func (s *SpinnerObserver) spin(bar *progressbar.ProgressBar, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update spinner", "error", err)
			}
		}
	}
}

func (s *SpinnerObserver) finishLocked() {
	if s.bar == nil {
		return
	}
	close(s.stop)
	<-s.done
	if err := s.bar.Finish(); err != nil {
		slog.Warn("Failed to finish spinner", "error", err)
	}
	s.bar = nil
}

func (s *SpinnerObserver) VerificationSucceeded(_ string, outcome *Outcome) {
	s.report(outcome)
}

func (s *SpinnerObserver) VerificationFailed(_ string, outcome *Outcome) {
	s.report(outcome)
}

func (s *SpinnerObserver) report(outcome *Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
	fmt.Fprintln(s.Writer, outcome.Message())
	for _, d := range outcome.Diff {
		fmt.Fprintf(s.Writer, "  %s: cached=%v recomputed=%v\n", d.Option, d.Cached, d.Actual)
	}
}
