package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/output"
	"github.com/ton-vote/verifier/internal/output/memory"
	"github.com/ton-vote/verifier/internal/output/postgresql"
)

var rootCmd = &cobra.Command{
	Use:   "verifier",
	Short: "Verify cached DAO proposal results against on-chain transactions",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(config.LoadLogConfig())
	},
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to a config file (yaml, toml or json)")
	pf.String("indexer-endpoint", "https://toncenter.com/api/v2", "Indexer (toncenter v2 API) endpoint")
	pf.String("fullnode-endpoint", "", "Full node gRPC gateway endpoint")
	pf.String("api-key", "", "Indexer API key")
	pf.Duration("request-timeout", config.DefaultRequestTimeout, "Timeout of a single network request")
	pf.Uint("page-size", config.DefaultPageSize, "Transactions requested per indexer page")
	pf.String("postgres-dsn", "", "PostgreSQL connection string of the snapshot store (in-memory store when empty)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	if err := viper.BindPFlags(pf); err != nil {
		slog.Error("Failed to bind flags", "error", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(verifyCmd, syncCmd, serveCmd, trackCmd)
}

func initConfig() {
	viper.SetEnvPrefix("VERIFIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			slog.Error("Failed to read config file", "file", cfgFile, "error", err)
			os.Exit(1)
		}
	}
}

func setupLogger(cfg config.LogConfig) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func openStore(ctx context.Context) (output.SnapshotStore, error) {
	dsn := viper.GetString("postgres-dsn")
	if dsn == "" {
		slog.Warn("No PostgreSQL DSN configured, snapshots are kept in memory")
		return memory.New(), nil
	}
	store, err := postgresql.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return store, nil
}
