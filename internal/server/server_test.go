package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ton-vote/verifier/internal/client"
	"github.com/ton-vote/verifier/internal/client/clienttest"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/metrics"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/output/memory"
	"github.com/ton-vote/verifier/internal/verifier"
)

type testServer struct {
	server  *Server
	store   *memory.Store
	session *verifier.Session
	indexer *clienttest.Indexer
	chain   *clienttest.Chain
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	chain := clienttest.NewChain()
	indexer := clienttest.StartIndexer(t, chain)
	node := clienttest.StartFullNode(t, chain)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := memory.New()
	session := verifier.NewSession(config.Endpoints{IndexerEndpoint: indexer.URL(), FullNodeEndpoint: node.Endpoint, ApiKey: "secret"})
	factory := client.NewFactory(config.ClientConfig{RequestTimeout: time.Second, PageSize: 10}, node.DialOption())
	v := verifier.New(store, session, factory, verifier.MetricsObserver{Metrics: m})

	return &testServer{
		server:  New(v, store, session, reg),
		store:   store,
		session: session,
		indexer: indexer,
		chain:   chain,
	}
}

func (ts *testServer) do(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := ts.server.App().Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp.StatusCode, out
}

func (ts *testServer) cache(t *testing.T, result models.ProposalResult, maxLt uint64) {
	t.Helper()
	require.NoError(t, ts.store.WriteSnapshot(context.Background(), &models.Snapshot{
		Address: "EQproposal",
		Metadata: models.ProposalMetadata{
			ProposalSnapshotTime: 1,
			ProposalStartTime:    2,
			ProposalEndTime:      10_000,
		},
		Result: result,
		MaxLt:  maxLt,
	}))
}

func TestGetProposal(t *testing.T) {
	ts := newTestServer(t)
	ts.cache(t, models.ProposalResult{"yes": models.NumberValue(3)}, 42)

	status, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/proposals/EQproposal", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(42), body["maxLt"])
	assert.Equal(t, map[string]interface{}{"yes": float64(3)}, body["proposalResult"])

	status, _ = ts.do(t, httptest.NewRequest(http.MethodGet, "/proposals/EQmissing", nil))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestVerifyProposal(t *testing.T) {
	cases := []struct {
		name       string
		setup      func(ts *testServer)
		body       string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "matches",
			setup:      func(ts *testServer) {},
			wantStatus: http.StatusOK,
			wantKind:   "success",
		},
		{
			name: "mismatch",
			setup: func(ts *testServer) {
				ts.chain.SetTonBalance("EQalice", 4)
				ts.chain.AddTransactions("EQproposal", clienttest.Tx{Lt: 200, Hash: "h", Utime: 100, Source: "EQalice", Comment: "y"})
			},
			wantStatus: http.StatusConflict,
			wantKind:   "mismatch",
		},
		{
			name:       "fetch error",
			setup:      func(ts *testServer) { ts.indexer.SetFail(true) },
			wantStatus: http.StatusBadGateway,
			wantKind:   "fetch_error",
		},
		{
			name:       "invalid override",
			setup:      func(ts *testServer) {},
			body:       `{"clientV2Endpoint":"not a url"}`,
			wantStatus: http.StatusBadGateway,
			wantKind:   "fetch_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.cache(t, models.ProposalResult{"yes": models.NumberValue(1)}, 100)
			tc.setup(ts)

			req := httptest.NewRequest(http.MethodPost, "/proposals/EQproposal/verify", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			status, body := ts.do(t, req)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantKind, body["status"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestVerifyOverrideVisibleOnEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.cache(t, models.ProposalResult{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/proposals/EQproposal/verify",
		strings.NewReader(`{"clientV2Endpoint":"https://custom.example","apiKey":"custom"}`))
	req.Header.Set("Content-Type", "application/json")
	status, body := ts.do(t, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["trivial"])

	status, body = ts.do(t, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://custom.example", body["clientV2Endpoint"])
	assert.Equal(t, true, body["hasApiKey"])
	assert.NotContains(t, body, "apiKey")
}

func TestVerifyUnknownProposal(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, httptest.NewRequest(http.MethodPost, "/proposals/EQmissing/verify", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "fetch_error", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.cache(t, models.ProposalResult{}, 0)
	_, _ = ts.do(t, httptest.NewRequest(http.MethodPost, "/proposals/EQproposal/verify", nil))

	resp, err := ts.server.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tonvote_verifier_verifications_total{outcome="success"} 1`)
}
