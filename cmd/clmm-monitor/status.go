package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the wallet's positions and the action recommended for each",
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

			positions, err := source.GetWalletPositions(ctx, cfg.WalletAddress)
			if err != nil {
				return fmt.Errorf("failed to fetch positions: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(positions)
			}

			var total, fees decimal.Decimal
			outOfRange := 0
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "POSITION\tPOOL\tPRICE\tRANGE\tVALUE\tFEES\tSTATUS")
			for _, p := range positions {
				status := "in range"
				if p.IsOutOfRange {
					status = "OUT OF RANGE"
					outOfRange++
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s - %s\t$%s\t$%s\t%s\n",
					p.ID, p.PoolName,
					formatPrice(p.CurrentPrice), formatPrice(p.PriceMin), formatPrice(p.PriceMax),
					decimal.NewFromFloat(p.TotalValueUSD).StringFixed(2),
					decimal.NewFromFloat(p.PendingFeesUSD).StringFixed(2),
					status)
				total = total.Add(decimal.NewFromFloat(p.TotalValueUSD))
				fees = fees.Add(decimal.NewFromFloat(p.PendingFeesUSD))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nPositions: %d (%d out of range)\n", len(positions), outOfRange)
			fmt.Fprintf(out, "Total value: $%s  Pending fees: $%s\n", total.StringFixed(2), fees.StringFixed(2))

			for _, p := range positions {
				if !p.IsOutOfRange {
					continue
				}
				if err := p.Validate(); err != nil {
					fmt.Fprintf(out, "%s: skipped (%v)\n", p.ID, err)
					continue
				}
				fmt.Fprintf(out, "%s: %s\n", p.ID, engine.GetRecommendedAction(p))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw position snapshots as JSON")
	return cmd
}

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).Round(6).String()
}

func printDecision(cmd *cobra.Command, position types.PositionSnapshot, decision types.RebalanceDecision) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Position:      %s (%s)\n", position.ID, position.PoolName)
	fmt.Fprintf(out, "Current price: %s\n", formatPrice(position.CurrentPrice))
	fmt.Fprintf(out, "Range:         %s - %s\n", formatPrice(position.PriceMin), formatPrice(position.PriceMax))
	fmt.Fprintf(out, "Decision:      %s\n", decision.Reason)
	fmt.Fprintf(out, "New range:     %s - %s\n", formatPrice(decision.NewPriceMin), formatPrice(decision.NewPriceMax))
	fmt.Fprintf(out, "Est. gas:      $%s\n", decimal.NewFromFloat(decision.EstimatedGasCost).StringFixed(4))
}
