package verifier

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/ton-vote/verifier/internal/client"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/metrics"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/output"
	"github.com/ton-vote/verifier/internal/verifier"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [proposal-address]",
	Short: "Verify the cached results of a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		address := args[0]

		clientCfg := config.LoadClientConfig()
		if clientCfg.RequestTimeout <= 0 || clientCfg.PageSize == 0 {
			return fmt.Errorf("invalid client configuration: request timeout and page size must be positive")
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if path, _ := cmd.Flags().GetString("snapshot"); path != "" {
			if err := importSnapshot(cmd, store, path, address); err != nil {
				return err
			}
		}

		override, err := overrideFromFlags(cmd)
		if err != nil {
			return err
		}

		m := metrics.New(prometheus.NewRegistry())
		v := verifier.New(store, verifier.NewSession(clientCfg.Endpoints), client.NewFactory(clientCfg),
			verifier.NewSpinnerObserver(cmd.ErrOrStderr()), verifier.WithMetrics(m))

		outcome := v.Verify(ctx, address, override)
		if !outcome.Succeeded() {
			return outcome.Err
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("snapshot", "", "JSON file holding the cached snapshot {metadata, proposalResult, maxLt} to verify")
	verifyCmd.Flags().String("custom-indexer-endpoint", "", "Indexer endpoint for this verification (kept for the session)")
	verifyCmd.Flags().String("custom-fullnode-endpoint", "", "Full node endpoint for this verification (kept for the session)")
	verifyCmd.Flags().String("custom-api-key", "", "Indexer API key; replaces the session key, and is cleared when only --custom-indexer-endpoint is set")
}

func overrideFromFlags(cmd *cobra.Command) (config.Endpoints, error) {
	var e config.Endpoints
	var err error
	if e.IndexerEndpoint, err = cmd.Flags().GetString("custom-indexer-endpoint"); err != nil {
		return e, err
	}
	if e.FullNodeEndpoint, err = cmd.Flags().GetString("custom-fullnode-endpoint"); err != nil {
		return e, err
	}
	if e.ApiKey, err = cmd.Flags().GetString("custom-api-key"); err != nil {
		return e, err
	}
	return e, nil
}

// loadSnapshotFile reads a snapshot dumped as JSON. The address argument wins over the one
// in the file.
func loadSnapshotFile(path, address string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot file: %w", err)
	}
	snap.Address = address
	return &snap, nil
}

func importSnapshot(cmd *cobra.Command, store output.SnapshotStore, path, address string) error {
	snap, err := loadSnapshotFile(path, address)
	if err != nil {
		return err
	}
	if err := store.WriteSnapshot(cmd.Context(), snap); err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	return nil
}
