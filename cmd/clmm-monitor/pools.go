package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newPoolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "List the pools known to the demo position source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			_, mock, err := positionSource(cfg)
			if err != nil {
				return err
			}
			if mock == nil {
				return errors.New("pool listing is only available with the demo source (unset POSITION_API_URL)")
			}

			pools, err := mock.GetPools(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "POOL\tADDRESS\tPRICE\tTICK SPACING\tTVL\t24H VOLUME\tAPR")
			for _, p := range pools {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%s\t$%s\t%s%%\n",
					p.Name, p.Address, formatPrice(p.CurrentPrice), p.TickSpacing,
					decimal.NewFromFloat(p.TvlUSD).StringFixed(0),
					decimal.NewFromFloat(p.Volume24hUSD).StringFixed(0),
					decimal.NewFromFloat(p.APR).StringFixed(2))
			}
			return w.Flush()
		},
	}
}
