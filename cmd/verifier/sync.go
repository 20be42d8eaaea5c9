package verifier

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ton-vote/verifier/internal/client"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/extractor"
	"github.com/ton-vote/verifier/internal/metrics"
	"github.com/ton-vote/verifier/internal/output"
	"github.com/ton-vote/verifier/internal/strategy"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fold new proposal transactions into the stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		clientCfg := config.LoadClientConfig()
		if err := clientCfg.Validate(); err != nil {
			return fmt.Errorf("invalid client configuration: %w", err)
		}
		syncCfg := config.LoadSyncConfig()
		if err := syncCfg.Validate(); err != nil {
			return fmt.Errorf("invalid sync configuration: %w", err)
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		endpoints := func() config.Endpoints { return clientCfg.Endpoints }
		syncer := newSyncer(clientCfg, syncCfg, store, metrics.New(prometheus.NewRegistry()), endpoints)

		if once, _ := cmd.Flags().GetBool("once"); once {
			syncer.ShowProgress = true
			return extractor.SyncOnce(ctx, syncer)
		}
		return extractor.SyncLive(ctx, syncer, syncCfg.Interval)
	},
}

func init() {
	syncCmd.Flags().Bool("once", false, "Run a single sync pass and exit")
	addSyncFlags(syncCmd)
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("sync-interval", config.DefaultSyncInterval, "Interval between sync passes")
	cmd.Flags().Uint("max-concurrency", config.DefaultMaxConcurrency, "Proposals synced in parallel")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlags(cmd.Flags())
	}
}

// newSyncer builds a syncer reading its endpoints from endpoints on every pass.
func newSyncer(clientCfg config.ClientConfig, syncCfg config.SyncConfig, store output.SnapshotStore, m *metrics.Metrics, endpoints func() config.Endpoints) *extractor.Syncer {
	return &extractor.Syncer{
		Endpoints:      endpoints,
		Clients:        client.NewFactory(clientCfg),
		Evaluator:      strategy.NewEvaluator,
		Store:          store,
		Metrics:        m,
		MaxConcurrency: syncCfg.MaxConcurrency,
	}
}
