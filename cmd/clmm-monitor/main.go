package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found. Relying on OS environment variables.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clmm-monitor",
		Short: "Monitor concentrated-liquidity positions and rebalance them when they drift out of range",
		Long: `clmm-monitor watches the concentrated-liquidity positions of a Solana wallet.

Each cycle fetches the wallet's positions, evaluates every out-of-range
position against the rebalance policy, sends alerts, and optionally closes
and reopens the position around the current price.

Configuration is read from clmm-monitor.yml (or CONFIG_FILE) and the
environment. Environment variables win.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newMonitorCmd(),
		newStatusCmd(),
		newRebalanceCmd(),
		newWalletCmd(),
		newTicksCmd(),
		newPoolsCmd(),
		newConfigCmd(),
		newNotifyTestCmd(),
	)
	return root
}
