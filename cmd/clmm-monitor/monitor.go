package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/elys-network/clmm-monitor/internal/config"
	"github.com/elys-network/clmm-monitor/internal/monitor"
	"github.com/elys-network/clmm-monitor/internal/state"
	"github.com/elys-network/clmm-monitor/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type monitorOptions struct {
	once  bool
	noWeb bool
}

func newMonitorCmd() *cobra.Command {
	var opts monitorOptions
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the monitor loop and the HTTP API",
		Long: `Run a check immediately and then every MONITOR_INTERVAL_MINUTES.

Out-of-range positions are evaluated and alerted on. With
AUTO_REBALANCE_ENABLED=true accepted rebalances are executed (simulated).
The HTTP API and /metrics are served on WEB_PORT unless --no-web is set.
SIGINT or SIGTERM stop the loop after the running cycle completes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.once, "once", false, "Run a single cycle, print its summary and exit")
	cmd.Flags().BoolVar(&opts.noWeb, "no-web", false, "Do not start the HTTP API")
	return cmd
}

func runMonitor(cmd *cobra.Command, opts monitorOptions) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	log.Info().
		Str("wallet", cfg.WalletAddress).
		Dur("interval", cfg.MonitorInterval).
		Bool("autoRebalance", cfg.AutoRebalance).
		Str("configFile", cfg.ConfigFile).
		Msg("CLMM monitor starting")

	source, mock, err := positionSource(cfg)
	if err != nil {
		return err
	}
	engine, refresher, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	dispatcher := newDispatcher(cfg)
	metrics := monitor.NewMetrics()

	monCfg := monitor.Config{
		WalletAddress:          cfg.WalletAddress,
		Engine:                 engine,
		Source:                 source,
		Notifier:               dispatcher,
		Metrics:                metrics,
		GasRefresher:           refresher,
		AutoRebalance:          cfg.AutoRebalance,
		AutoCompound:           cfg.AutoCompound,
		MinHarvestThresholdUSD: cfg.MinHarvestThresholdUSD,
	}
	if cfg.AutoRebalance {
		if monCfg.Executor, err = newExecutor(cfg); err != nil {
			return err
		}
	}

	var store *state.Store
	if cfg.DatabaseURL != "" {
		store, err = openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		monCfg.Store = store
	} else {
		log.Info().Msg("DATABASE_URL not set: cycle history is kept in memory only")
	}

	m, err := monitor.NewMonitor(monCfg)
	if err != nil {
		return err
	}

	if opts.once {
		summary, err := m.RunCycle(ctx)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(summary); encErr != nil {
			return encErr
		}
		return err
	}

	if err := dispatcher.SendStartup(ctx, cfg.WalletAddress, cfg.MonitorInterval, cfg.AutoRebalance); err != nil {
		log.Warn().Err(err).Msg("Failed to send startup notification")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Run(gctx, cfg.MonitorInterval)
	})

	if !opts.noWeb && cfg.WebPort != "" {
		webCfg := web.Config{
			Port:    cfg.WebPort,
			Monitor: m,
			Metrics: metrics.Handler(),
		}
		if mock != nil {
			webCfg.Pools = mock
		}
		if store != nil {
			webCfg.History = store
		}
		server, err := web.NewServer(webCfg)
		if err != nil {
			return err
		}

		log.Info().Str("url", "http://localhost:"+cfg.WebPort).Msg("Starting monitor HTTP API")
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info().Msg("CLMM monitor stopped")
	return err
}

func openStore(ctx context.Context, cfg *config.Config) (*state.Store, error) {
	store, err := state.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
