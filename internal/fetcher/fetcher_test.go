package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ton-vote/verifier/internal/models"
)

type staticSource struct {
	txs []models.Transaction
	err error
}

func (s staticSource) GetTransactions(context.Context, string) ([]models.Transaction, error) {
	return s.txs, s.err
}

func tx(lt uint64, hash string) models.Transaction {
	return models.Transaction{Lt: lt, Hash: hash}
}

func ltsOf(txs []models.Transaction) []uint64 {
	out := make([]uint64, 0, len(txs))
	for _, t := range txs {
		out = append(out, t.Lt)
	}
	return out
}

func TestFetchMerge(t *testing.T) {
	cases := []struct {
		name      string
		indexer   []models.Transaction
		fullNode  []models.Transaction
		wantLts   []uint64
		wantMaxLt uint64
		wantLag   int
		wantErr   error
	}{
		{
			name:      "identical answers",
			indexer:   []models.Transaction{tx(300, "c"), tx(200, "b"), tx(100, "a")},
			fullNode:  []models.Transaction{tx(100, "a"), tx(300, "c"), tx(200, "b")},
			wantLts:   []uint64{100, 200, 300},
			wantMaxLt: 300,
		},
		{
			name:      "indexer lagging",
			indexer:   []models.Transaction{tx(100, "a")},
			fullNode:  []models.Transaction{tx(100, "a"), tx(200, "b")},
			wantLts:   []uint64{100, 200},
			wantMaxLt: 200,
			wantLag:   1,
		},
		{
			name:      "full node trailing the indexer",
			indexer:   []models.Transaction{tx(100, "a"), tx(200, "b")},
			fullNode:  []models.Transaction{tx(100, "a")},
			wantLts:   []uint64{100, 200},
			wantMaxLt: 200,
		},
		{
			name:     "hash conflict",
			indexer:  []models.Transaction{tx(100, "x")},
			fullNode: []models.Transaction{tx(100, "a")},
			wantErr:  ErrClientsDisagree,
		},
		{
			name:     "indexer invents history",
			indexer:  []models.Transaction{tx(150, "x")},
			fullNode: []models.Transaction{tx(100, "a"), tx(200, "b")},
			wantErr:  ErrClientsDisagree,
		},
		{
			name:      "empty history",
			wantLts:   []uint64{},
			wantMaxLt: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Fetch(context.Background(), staticSource{txs: tc.indexer}, staticSource{txs: tc.fullNode}, "EQproposal")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantLts, ltsOf(res.Transactions))
			assert.Equal(t, tc.wantMaxLt, res.MaxLt)
			assert.Equal(t, tc.wantLag, res.IndexerLag)
		})
	}
}

func TestFetchFullNodePayloadWins(t *testing.T) {
	indexed := models.Transaction{Lt: 100, Hash: "a", Payload: []byte("stale")}
	authoritative := models.Transaction{Lt: 100, Hash: "a", Payload: []byte("y")}

	res, err := Fetch(context.Background(),
		staticSource{txs: []models.Transaction{indexed}},
		staticSource{txs: []models.Transaction{authoritative}}, "EQproposal")
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, []byte("y"), res.Transactions[0].Payload)
}

func TestFetchFailures(t *testing.T) {
	boom := errors.New("connection refused")

	_, err := Fetch(context.Background(), staticSource{err: boom}, staticSource{}, "EQproposal")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "indexer")

	_, err = Fetch(context.Background(), staticSource{}, staticSource{err: boom}, "EQproposal")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "full node")
}
