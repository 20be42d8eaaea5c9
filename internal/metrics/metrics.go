// Package metrics holds the prometheus collectors of the verifier.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors updated by verifications and sync passes.
type Metrics struct {
	Verifications       *prometheus.CounterVec
	VerificationSeconds prometheus.Histogram
	FetchedTransactions *prometheus.CounterVec
	Watermark           *prometheus.GaugeVec
	SyncErrors          prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tonvote",
			Subsystem: "verifier",
			Name:      "verifications_total",
			Help:      "Proposal result verifications by outcome.",
		}, []string{"outcome"}),
		VerificationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tonvote",
			Subsystem: "verifier",
			Name:      "verification_duration_seconds",
			Help:      "Duration of proposal result verifications.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		FetchedTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tonvote",
			Subsystem: "verifier",
			Name:      "fetched_transactions_total",
			Help:      "Transactions fetched from proposal contracts, split into full history and delta.",
		}, []string{"kind"}),
		Watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tonvote",
			Subsystem: "sync",
			Name:      "max_lt",
			Help:      "Watermark (max logical time) of each synced proposal.",
		}, []string{"proposal"}),
		SyncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tonvote",
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Failed proposal sync attempts.",
		}),
	}
	reg.MustRegister(m.Verifications, m.VerificationSeconds, m.FetchedTransactions, m.Watermark, m.SyncErrors)
	return m
}
