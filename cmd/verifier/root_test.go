package verifier

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/metrics"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/output/memory"
	"github.com/ton-vote/verifier/internal/verifier"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSetupLogger(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.LogConfig
		wantErr string
	}{
		{name: "text", cfg: config.LogConfig{Level: "info", Format: "text"}},
		{name: "json debug", cfg: config.LogConfig{Level: "debug", Format: "json"}},
		{name: "bad level", cfg: config.LogConfig{Level: "loud", Format: "text"}, wantErr: "invalid log level"},
		{name: "bad format", cfg: config.LogConfig{Level: "info", Format: "xml"}, wantErr: "invalid log format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := setupLogger(tc.cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadSnapshotFile(t *testing.T) {
	path := writeFile(t, "snapshot.json", `{
		"address": "ignored",
		"metadata": {"votingPowerStrategy": 0, "proposalStartTime": 2, "proposalEndTime": 3, "proposalSnapshotTime": 1},
		"proposalResult": {"yes": "10", "no": null},
		"maxLt": 1000
	}`)

	snap, err := loadSnapshotFile(path, "EQproposal")
	require.NoError(t, err)
	assert.Equal(t, "EQproposal", snap.Address)
	assert.Equal(t, uint64(1000), snap.MaxLt)
	assert.Equal(t, models.NumericString, snap.Result["yes"].Kind())
	assert.Equal(t, models.Absent, snap.Result["no"].Kind())

	_, err = loadSnapshotFile(writeFile(t, "bad.json", `{"proposalResult": {"yes": "ten"}}`), "EQproposal")
	assert.ErrorIs(t, err, models.ErrInvalidValue)
}

func TestLoadMetadataFile(t *testing.T) {
	ok := writeFile(t, "ok.json", `{"votingPowerStrategy": 0, "proposalSnapshotTime": 1, "proposalStartTime": 2, "proposalEndTime": 3}`)
	metadata, err := loadMetadataFile(ok)
	require.NoError(t, err)
	assert.Equal(t, models.TonBalance, metadata.VotingPowerStrategy)

	missingJetton := writeFile(t, "jetton.json", `{"votingPowerStrategy": 1, "proposalSnapshotTime": 1, "proposalStartTime": 2, "proposalEndTime": 3}`)
	_, err = loadMetadataFile(missingJetton)
	assert.ErrorIs(t, err, models.ErrInvalidMetadata)
}

func TestOverrideFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("custom-indexer-endpoint", "", "")
	cmd.Flags().String("custom-fullnode-endpoint", "", "")
	cmd.Flags().String("custom-api-key", "", "")
	require.NoError(t, cmd.Flags().Set("custom-indexer-endpoint", "https://custom.example"))
	require.NoError(t, cmd.Flags().Set("custom-api-key", "k"))

	got, err := overrideFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, config.Endpoints{IndexerEndpoint: "https://custom.example", ApiKey: "k"}, got)
}

func TestNewSyncerFollowsSession(t *testing.T) {
	defaults := config.Endpoints{IndexerEndpoint: "https://default.example", FullNodeEndpoint: "node.example:443", ApiKey: "k"}
	session := verifier.NewSession(defaults)
	syncer := newSyncer(config.ClientConfig{Endpoints: defaults, RequestTimeout: time.Second, PageSize: 10},
		config.SyncConfig{Interval: time.Second, MaxConcurrency: 2},
		memory.New(), metrics.New(prometheus.NewRegistry()), session.Endpoints)

	assert.Equal(t, defaults, syncer.Endpoints())
	session.Override(config.Endpoints{IndexerEndpoint: "https://custom.example"})
	assert.Equal(t, "https://custom.example", syncer.Endpoints().IndexerEndpoint)
	assert.Equal(t, uint(2), syncer.MaxConcurrency)
}
