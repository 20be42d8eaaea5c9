package verifier

import (
	"errors"
	"time"

	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/results"
)

var ErrNotEqual = errors.New("not equal")

type OutcomeKind int

const (
	Success OutcomeKind = iota
	Mismatch
	FetchError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Mismatch:
		return "mismatch"
	case FetchError:
		return "fetch_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of one verification.
type Outcome struct {
	Kind    OutcomeKind `json:"-"`
	Address string      `json:"address"`
	// Trivial is set when the cached tally was empty and nothing was compared.
	Trivial    bool                  `json:"trivial,omitempty"`
	CachedLt   uint64                `json:"cachedMaxLt"`
	MaxLt      uint64                `json:"maxLt,omitempty"`
	Delta      int                   `json:"deltaTransactions"`
	Recomputed models.ProposalResult `json:"recomputed,omitempty"`
	Diff       []results.FieldDiff   `json:"diff,omitempty"`
	Endpoints  config.Endpoints      `json:"-"`
	Duration   time.Duration         `json:"-"`
	Err        error                 `json:"-"`
}

func (o *Outcome) Succeeded() bool { return o.Kind == Success }

// Message is the user-facing description of the outcome.
func (o *Outcome) Message() string {
	switch o.Kind {
	case Success:
		return "Results verified"
	case Mismatch:
		return "Failed to verify results: " + o.Err.Error()
	default:
		if o.Err != nil {
			return "Failed to verify results: " + o.Err.Error()
		}
		return "Failed to verify results"
	}
}
