package main

import (
	"errors"
	"fmt"

	"github.com/elys-network/clmm-monitor/internal/monitor"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRebalanceCmd() *cobra.Command {
	var (
		positionID string
		opts       types.RebalanceOptions
	)
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Evaluate one position and optionally close and reopen it",
		Long: `Evaluate one position with the rebalance policy.

--range overrides the new range width for this run only. --force proceeds
with the computed range even when the policy rejects; invalid position data
is never forced. Without --execute nothing is changed.

This command keeps its own cooldown registry, so a rebalance done by a
running monitor is not visible here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			source, _, err := positionSource(cfg)
			if err != nil {
				return err
			}
			engine, _, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			exec, err := newExecutor(cfg)
			if err != nil {
				return err
			}
			dispatcher := newDispatcher(cfg)

			m, err := monitor.NewMonitor(monitor.Config{
				WalletAddress: cfg.WalletAddress,
				Engine:        engine,
				Source:        source,
				Executor:      exec,
				Notifier:      dispatcher,
			})
			if err != nil {
				return err
			}

			eval, err := m.Evaluate(ctx, cfg.WalletAddress, positionID, opts)
			if errors.Is(err, monitor.ErrPositionNotFound) {
				return fmt.Errorf("%w (run `clmm-monitor status` to list positions)", err)
			}
			if eval.Position.ID != "" {
				printDecision(cmd, eval.Position, eval.Decision)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case !eval.Proceed:
				fmt.Fprintln(out, "\nNot rebalancing. Use --force to proceed anyway.")
			case eval.Execution == nil:
				if eval.Forced {
					fmt.Fprintln(out, "\nForced: the policy rejected this rebalance.")
				}
				fmt.Fprintln(out, "\nDry run. Use --execute to close and reopen the position.")
			default:
				fmt.Fprintf(out, "\nRebalanced (simulated): %s -> %s, ticks [%d, %d]\n",
					eval.Execution.PositionID, eval.Execution.NewPositionID,
					eval.Execution.NewTickLower, eval.Execution.NewTickUpper)
				if err := dispatcher.SendRebalanceExecuted(ctx, eval.Position, *eval.Execution); err != nil {
					log.Warn().Err(err).Msg("Failed to send rebalance confirmation")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&positionID, "position", "", "Position id to evaluate (required)")
	cmd.Flags().Float64Var(&opts.RangePercent, "range", 0, "New range width as ± percent of the current price (default from config)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Proceed even when the policy rejects the rebalance")
	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "Close and reopen the position")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}
