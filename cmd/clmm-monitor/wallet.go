package main

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const lamportsDecimals = 9

func newWalletCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Validate the configured wallet and show its SOL balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wallet:   %s\n", cfg.WalletPublicKey)
			fmt.Fprintf(out, "On curve: %t\n", cfg.WalletPublicKey.IsOnCurve())
			if offline {
				return nil
			}

			client := rpc.New(cfg.Endpoints.SolanaRPC)
			balance, err := client.GetBalance(cmd.Context(), cfg.WalletPublicKey, rpc.CommitmentFinalized)
			if err != nil {
				return fmt.Errorf("failed to get balance from %s: %w", cfg.Endpoints.SolanaRPC, err)
			}
			sol := decimal.NewFromBigInt(new(big.Int).SetUint64(balance.Value), -lamportsDecimals)
			fmt.Fprintf(out, "Balance:  %s SOL\n", sol.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Only validate the address, do not query the RPC node")
	return cmd
}
