package main

import (
	"errors"
	"fmt"

	"github.com/elys-network/clmm-monitor/internal/clmm"
	"github.com/spf13/cobra"
)

func newTicksCmd() *cobra.Command {
	var (
		price   float64
		tick    int32
		spacing int32
	)
	cmd := &cobra.Command{
		Use:   "ticks",
		Short: "Convert between prices, ticks and sqrt prices",
		Example: `  clmm-monitor ticks --price 100.5 --spacing 64
  clmm-monitor ticks --tick -20000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			priceSet := cmd.Flags().Changed("price")
			tickSet := cmd.Flags().Changed("tick")
			if priceSet == tickSet {
				return errors.New("exactly one of --price or --tick is required")
			}

			var err error
			if priceSet {
				if tick, err = clmm.PriceToTick(price); err != nil {
					return err
				}
			}
			if spacing > 0 {
				if tick, err = clmm.AlignTick(tick, spacing); err != nil {
					return err
				}
			}

			tickPrice, err := clmm.TickToPrice(tick)
			if err != nil {
				return err
			}
			sqrtPriceX64, err := clmm.PriceToSqrtPriceX64(tickPrice)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if priceSet {
				fmt.Fprintf(out, "Price:          %s\n", formatPrice(price))
			}
			fmt.Fprintf(out, "Tick:           %d\n", tick)
			fmt.Fprintf(out, "Tick price:     %s\n", formatPrice(tickPrice))
			fmt.Fprintf(out, "Sqrt price X64: %s\n", sqrtPriceX64.String())
			return nil
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "Price to convert to a tick")
	cmd.Flags().Int32Var(&tick, "tick", 0, "Tick to convert to a price")
	cmd.Flags().Int32Var(&spacing, "spacing", 0, "Round the tick down to this tick spacing")
	return cmd
}
