// Package results canonicalizes proposal tallies so that results decoded from different
// serializations can be compared.
package results

import (
	"math"
	"slices"

	"github.com/ton-vote/verifier/internal/models"
)

// Canonical is a tally with every value coerced to a plain number.
type Canonical map[string]float64

// Normalize maps absent and NaN values to 0 and numeric strings to their number.
// It returns a fresh map; r is left untouched. A nil result normalizes to nil.
func Normalize(r models.ProposalResult) Canonical {
	if r == nil {
		return nil
	}
	out := make(Canonical, len(r))
	for option, v := range r {
		out[option] = canonicalValue(v)
	}
	return out
}

func canonicalValue(v models.Value) float64 {
	switch v.Kind() {
	case models.Number, models.NumericString:
		f, _ := v.Float()
		if math.IsNaN(f) {
			return 0
		}
		return f
	case models.Absent:
		return 0
	}
	return 0
}

// Result converts c back to a ProposalResult of plain numbers.
func (c Canonical) Result() models.ProposalResult {
	if c == nil {
		return nil
	}
	out := make(models.ProposalResult, len(c))
	for option, f := range c {
		out[option] = models.NumberValue(f)
	}
	return out
}

// Equal is deep equality over options. nil and empty tallies are equal.
func Equal(a, b Canonical) bool {
	return len(Diff(a, b)) == 0
}

// FieldDiff is one option whose tallies differ. Missing reports which side lacked the option.
type FieldDiff struct {
	Option  string  `json:"option"`
	Cached  float64 `json:"cached"`
	Actual  float64 `json:"recomputed"`
	Missing string  `json:"missing,omitempty"`
}

// Diff lists the options where cached and recomputed disagree, sorted by option.
func Diff(cached, recomputed Canonical) []FieldDiff {
	var diffs []FieldDiff
	for option, c := range cached {
		r, ok := recomputed[option]
		switch {
		case !ok:
			diffs = append(diffs, FieldDiff{Option: option, Cached: c, Missing: "recomputed"})
		case c != r:
			diffs = append(diffs, FieldDiff{Option: option, Cached: c, Actual: r})
		}
	}
	for option, r := range recomputed {
		if _, ok := cached[option]; !ok {
			diffs = append(diffs, FieldDiff{Option: option, Actual: r, Missing: "cached"})
		}
	}
	slices.SortFunc(diffs, func(a, b FieldDiff) int {
		switch {
		case a.Option < b.Option:
			return -1
		case a.Option > b.Option:
			return 1
		}
		return 0
	})
	return diffs
}
