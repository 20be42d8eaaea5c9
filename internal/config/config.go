package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSyncInterval   = 30 * time.Second
	DefaultRequestTimeout = 15 * time.Second
	DefaultPageSize       = 100
	DefaultMaxConcurrency = 4
)

// Endpoints describes which network clients a verification uses.
type Endpoints struct {
	IndexerEndpoint  string `json:"clientV2Endpoint" mapstructure:"indexer-endpoint"`
	FullNodeEndpoint string `json:"clientV4Endpoint" mapstructure:"fullnode-endpoint"`
	ApiKey           string `json:"apiKey,omitempty" mapstructure:"api-key"`
}

func (e Endpoints) Validate() error {
	if e.IndexerEndpoint == "" {
		return fmt.Errorf("indexer endpoint is required")
	}
	if _, err := url.ParseRequestURI(e.IndexerEndpoint); err != nil {
		return fmt.Errorf("invalid indexer endpoint: %w", err)
	}
	if e.FullNodeEndpoint == "" {
		return fmt.Errorf("full node endpoint is required")
	}
	return nil
}

// Merge returns e with every non-empty field of override applied. Empty endpoints in
// override keep the current ones; an endpoint cannot be cleared. The API key belongs to
// the indexer: overriding the indexer endpoint replaces the key too, with no key at all
// when override carries none.
func (e Endpoints) Merge(override Endpoints) Endpoints {
	if override.IndexerEndpoint != "" {
		e.IndexerEndpoint = override.IndexerEndpoint
		e.ApiKey = override.ApiKey
	} else if override.ApiKey != "" {
		e.ApiKey = override.ApiKey
	}
	if override.FullNodeEndpoint != "" {
		e.FullNodeEndpoint = override.FullNodeEndpoint
	}
	return e
}

type ClientConfig struct {
	Endpoints      Endpoints
	RequestTimeout time.Duration
	PageSize       uint
}

func (c ClientConfig) Validate() error {
	if err := c.Endpoints.Validate(); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.PageSize == 0 {
		return fmt.Errorf("page size must be greater than 0")
	}
	return nil
}

type SyncConfig struct {
	Interval       time.Duration
	MaxConcurrency uint
}

func (c SyncConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if c.MaxConcurrency == 0 {
		return fmt.Errorf("max concurrency must be greater than 0")
	}
	return nil
}

type ServeConfig struct {
	ListenAddr string
}

func (c ServeConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadClientConfig() ClientConfig {
	return ClientConfig{
		Endpoints: Endpoints{
			IndexerEndpoint:  viper.GetString("indexer-endpoint"),
			FullNodeEndpoint: viper.GetString("fullnode-endpoint"),
			ApiKey:           viper.GetString("api-key"),
		},
		RequestTimeout: viper.GetDuration("request-timeout"),
		PageSize:       viper.GetUint("page-size"),
	}
}

func LoadSyncConfig() SyncConfig {
	return SyncConfig{
		Interval:       viper.GetDuration("sync-interval"),
		MaxConcurrency: viper.GetUint("max-concurrency"),
	}
}

func LoadServeConfig() ServeConfig {
	return ServeConfig{ListenAddr: viper.GetString("listen-addr")}
}

func LoadLogConfig() LogConfig {
	return LogConfig{
		Level:  viper.GetString("log-level"),
		Format: viper.GetString("log-format"),
	}
}
