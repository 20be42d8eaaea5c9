package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEndpoints() Endpoints {
	return Endpoints{
		IndexerEndpoint:  "https://toncenter.example/api/v2",
		FullNodeEndpoint: "fullnode.example:443",
		ApiKey:           "secret",
	}
}

func TestEndpointsValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(e *Endpoints)
		wantErr string
	}{
		{name: "valid", mutate: func(e *Endpoints) {}},
		{name: "missing indexer", mutate: func(e *Endpoints) { e.IndexerEndpoint = "" }, wantErr: "indexer endpoint is required"},
		{name: "relative indexer", mutate: func(e *Endpoints) { e.IndexerEndpoint = "toncenter" }, wantErr: "invalid indexer endpoint"},
		{name: "missing full node", mutate: func(e *Endpoints) { e.FullNodeEndpoint = "" }, wantErr: "full node endpoint is required"},
		{name: "api key optional", mutate: func(e *Endpoints) { e.ApiKey = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validEndpoints()
			tc.mutate(&e)
			err := e.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestEndpointsMerge(t *testing.T) {
	cases := []struct {
		name     string
		override Endpoints
		want     Endpoints
	}{
		{
			name:     "empty override keeps everything",
			override: Endpoints{},
			want:     validEndpoints(),
		},
		{
			name:     "new indexer drops the old key",
			override: Endpoints{IndexerEndpoint: "https://custom.example"},
			want:     Endpoints{IndexerEndpoint: "https://custom.example", FullNodeEndpoint: "fullnode.example:443"},
		},
		{
			name:     "new indexer with its own key",
			override: Endpoints{IndexerEndpoint: "https://custom.example", ApiKey: "custom"},
			want:     Endpoints{IndexerEndpoint: "https://custom.example", FullNodeEndpoint: "fullnode.example:443", ApiKey: "custom"},
		},
		{
			name:     "key only",
			override: Endpoints{ApiKey: "rotated"},
			want:     Endpoints{IndexerEndpoint: validEndpoints().IndexerEndpoint, FullNodeEndpoint: "fullnode.example:443", ApiKey: "rotated"},
		},
		{
			name:     "full node only keeps the indexer key",
			override: Endpoints{FullNodeEndpoint: "other.example:443"},
			want:     Endpoints{IndexerEndpoint: validEndpoints().IndexerEndpoint, FullNodeEndpoint: "other.example:443", ApiKey: "secret"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, validEndpoints().Merge(tc.override))
		})
	}
}

func TestClientConfigValidate(t *testing.T) {
	cfg := ClientConfig{Endpoints: validEndpoints(), RequestTimeout: time.Second, PageSize: 10}
	assert.NoError(t, cfg.Validate())

	cfg.PageSize = 0
	assert.ErrorContains(t, cfg.Validate(), "page size")

	cfg.PageSize = 10
	cfg.RequestTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "request timeout")
}

func TestSyncConfigValidate(t *testing.T) {
	assert.NoError(t, SyncConfig{Interval: DefaultSyncInterval, MaxConcurrency: 1}.Validate())
	assert.Error(t, SyncConfig{Interval: 0, MaxConcurrency: 1}.Validate())
	assert.Error(t, SyncConfig{Interval: time.Second}.Validate())
}

func TestLoadClientConfigFromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("indexer-endpoint", "https://idx.example")
	viper.Set("fullnode-endpoint", "node.example:443")
	viper.Set("api-key", "k")
	viper.Set("request-timeout", "3s")
	viper.Set("page-size", 25)

	cfg := LoadClientConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Endpoints{IndexerEndpoint: "https://idx.example", FullNodeEndpoint: "node.example:443", ApiKey: "k"}, cfg.Endpoints)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, uint(25), cfg.PageSize)
}
