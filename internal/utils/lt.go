package utils

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/ton-vote/verifier/internal/models"
)

// ParseLt parses a logical time as served by the indexer and the full node (decimal string).
// An empty string is the zero watermark.
func ParseLt(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	lt, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.WithMessage(err, "error parsing logical time")
	}
	return lt, nil
}

// FilterSince returns the transactions with a logical time strictly greater than watermark,
// in their original order. The input is never modified.
func FilterSince(transactions []models.Transaction, watermark uint64) []models.Transaction {
	delta := make([]models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Lt > watermark {
			delta = append(delta, tx)
		}
	}
	return delta
}

// MaxLt returns the highest logical time in transactions, or floor if none is higher.
// Passing the previous watermark as floor keeps the watermark non-decreasing.
func MaxLt(transactions []models.Transaction, floor uint64) uint64 {
	maxLt := floor
	for _, tx := range transactions {
		if tx.Lt > maxLt {
			maxLt = tx.Lt
		}
	}
	return maxLt
}

// SortByLt orders transactions by ascending logical time, hash breaking ties.
func SortByLt(transactions []models.Transaction) {
	slices.SortStableFunc(transactions, func(a, b models.Transaction) int {
		if a.Lt != b.Lt {
			if a.Lt < b.Lt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Hash, b.Hash)
	})
}
