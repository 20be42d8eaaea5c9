package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ton-vote/verifier/internal/client"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/extractor"
	"github.com/ton-vote/verifier/internal/metrics"
	"github.com/ton-vote/verifier/internal/server"
	"github.com/ton-vote/verifier/internal/verifier"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshots and verifications over HTTP, optionally syncing in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		clientCfg := config.LoadClientConfig()
		if err := clientCfg.Validate(); err != nil {
			return fmt.Errorf("invalid client configuration: %w", err)
		}
		serveCfg := config.LoadServeConfig()
		if err := serveCfg.Validate(); err != nil {
			return fmt.Errorf("invalid serve configuration: %w", err)
		}
		syncCfg := config.LoadSyncConfig()
		withSync := viper.GetBool("sync")
		if withSync {
			if err := syncCfg.Validate(); err != nil {
				return fmt.Errorf("invalid sync configuration: %w", err)
			}
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)

		session := verifier.NewSession(clientCfg.Endpoints)
		v := verifier.New(store, session, client.NewFactory(clientCfg),
			verifier.Observers{verifier.LogObserver{}, verifier.MetricsObserver{Metrics: m}},
			verifier.WithMetrics(m))
		srv := server.New(v, store, session, reg)
		var syncer *extractor.Syncer
		if withSync {
			syncer = newSyncer(clientCfg, syncCfg, store, m, session.Endpoints)
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return srv.Listen(serveCfg.ListenAddr)
		})
		eg.Go(func() error {
			<-egCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			slog.Info("Shutting down HTTP server")
			return srv.Shutdown(shutdownCtx)
		})
		if syncer != nil {
			eg.Go(func() error {
				return extractor.SyncLive(egCtx, syncer, syncCfg.Interval)
			})
		}

		if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().Bool("sync", true, "Keep snapshots fresh in the background")
	addSyncFlags(serveCmd)
}
