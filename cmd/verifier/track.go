package verifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/output"
)

var trackCmd = &cobra.Command{
	Use:   "track [proposal-address] [metadata.json]",
	Short: "Start tracking a proposal with an empty tally",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := args[0]
		if err := models.ValidateAddress(address); err != nil {
			return fmt.Errorf("invalid proposal address: %w", err)
		}
		metadata, err := loadMetadataFile(args[1])
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.GetSnapshot(cmd.Context(), address); err == nil {
			return fmt.Errorf("proposal %s is already tracked", address)
		} else if !errors.Is(err, output.ErrSnapshotNotFound) {
			return err
		}

		if err := store.WriteSnapshot(cmd.Context(), &models.Snapshot{Address: address, Metadata: *metadata}); err != nil {
			return fmt.Errorf("failed to store proposal: %w", err)
		}
		slog.Info("Tracking proposal", "proposal", address, "strategy", metadata.VotingPowerStrategy.String())
		return nil
	},
}

func loadMetadataFile(path string) (*models.ProposalMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	var metadata models.ProposalMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata file: %w", err)
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	return &metadata, nil
}
