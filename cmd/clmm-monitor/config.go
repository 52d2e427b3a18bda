package main

import (
	"errors"
	"fmt"

	"github.com/elys-network/clmm-monitor/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// resolvedConfig is the printable view of config.Config. Secrets are masked.
type resolvedConfig struct {
	ConfigFile string `yaml:"config_file"`
	Wallet     string `yaml:"wallet"`
	Automation struct {
		CheckIntervalMinutes float64 `yaml:"check_interval_minutes"`
		AutoRebalance        bool    `yaml:"auto_rebalance"`
		AutoCompound         bool    `yaml:"auto_compound"`
		CompoundThresholdUSD float64 `yaml:"compound_threshold_usd"`
	} `yaml:"automation"`
	Rebalance struct {
		PriceMovementThreshold float64 `yaml:"price_movement_threshold"`
		RangePercent           float64 `yaml:"range_percent"`
		MinIntervalMinutes     float64 `yaml:"min_interval_minutes"`
		MaxGasCostUSD          float64 `yaml:"max_gas_cost_usd"`
		MinPositionValueUSD    float64 `yaml:"min_position_value_usd"`
		SlippagePercent        float64 `yaml:"slippage_percent"`
		LiveGasPrice           bool    `yaml:"live_gas_price"`
	} `yaml:"rebalance"`
	Notifications struct {
		Telegram string `yaml:"telegram"`
		Discord  string `yaml:"discord"`
	} `yaml:"notifications"`
	Endpoints struct {
		SolanaRPC   string `yaml:"solana_rpc"`
		PositionAPI string `yaml:"position_api"`
		PriceAPI    string `yaml:"price_api"`
	} `yaml:"endpoints"`
	Database string `yaml:"database"`
	WebPort  string `yaml:"web_port"`
}

func newConfigCmd() *cobra.Command {
	var (
		initFile bool
		path     string
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create a config file or show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if initFile {
				if err := config.WriteDefaultFile(path); err != nil {
					if errors.Is(err, config.ErrConfigFileExists) {
						return fmt.Errorf("%w; remove it first to regenerate", err)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
				return nil
			}

			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(toResolved(cfg))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&initFile, "init", false, "Write a default config file")
	cmd.Flags().StringVar(&path, "path", config.DefaultConfigFile, "Config file written by --init")
	return cmd
}

func toResolved(cfg *config.Config) resolvedConfig {
	var r resolvedConfig
	r.ConfigFile = cfg.ConfigFile
	r.Wallet = cfg.WalletAddress

	r.Automation.CheckIntervalMinutes = cfg.MonitorInterval.Minutes()
	r.Automation.AutoRebalance = cfg.AutoRebalance
	r.Automation.AutoCompound = cfg.AutoCompound
	r.Automation.CompoundThresholdUSD = cfg.MinHarvestThresholdUSD

	r.Rebalance.PriceMovementThreshold = cfg.Rebalance.PriceMovementThreshold
	r.Rebalance.RangePercent = cfg.Rebalance.DefaultRangePercent
	r.Rebalance.MinIntervalMinutes = cfg.Rebalance.MinRebalanceInterval.Minutes()
	r.Rebalance.MaxGasCostUSD = cfg.Rebalance.MaxGasCostUSD
	r.Rebalance.MinPositionValueUSD = cfg.Rebalance.MinPositionValueUSD
	r.Rebalance.SlippagePercent = cfg.SlippagePercent
	r.Rebalance.LiveGasPrice = cfg.LiveGasPrice

	r.Notifications.Telegram = enabled(cfg.Notifications.TelegramBotToken != "")
	r.Notifications.Discord = enabled(cfg.Notifications.DiscordWebhookURL != "")

	r.Endpoints.SolanaRPC = cfg.Endpoints.SolanaRPC
	r.Endpoints.PositionAPI = cfg.Endpoints.PositionAPI
	if r.Endpoints.PositionAPI == "" {
		r.Endpoints.PositionAPI = "demo"
	}
	r.Endpoints.PriceAPI = cfg.Endpoints.PriceAPI

	r.Database = enabled(cfg.DatabaseURL != "")
	r.WebPort = cfg.WebPort
	return r
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
