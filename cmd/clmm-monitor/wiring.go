package main

import (
	"context"

	"github.com/elys-network/clmm-monitor/internal/config"
	"github.com/elys-network/clmm-monitor/internal/datafetcher"
	"github.com/elys-network/clmm-monitor/internal/executor"
	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/elys-network/clmm-monitor/internal/monitor"
	"github.com/elys-network/clmm-monitor/internal/notify"
	"github.com/elys-network/clmm-monitor/internal/strategy"
	"github.com/rs/zerolog/log"
)

// loadConfig resolves the configuration and initializes the logger from it.
func loadConfig(requireWallet bool) (*config.Config, error) {
	load := config.LoadConfigWithoutWallet
	if requireWallet {
		load = config.LoadConfig
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	return cfg, nil
}

// positionSource returns the configured position API, or the demo portfolio
// when no API is configured. pools is nil when the source cannot list pools.
func positionSource(cfg *config.Config) (source monitor.PositionSource, pools *datafetcher.MockSource, err error) {
	if cfg.Endpoints.PositionAPI == "" {
		log.Warn().Msg("POSITION_API_URL not set: using the built-in demo portfolio")
		mock := datafetcher.NewMockSource()
		return mock, mock, nil
	}

	api, err := datafetcher.NewAPISource(cfg.Endpoints.PositionAPI, cfg.Endpoints.PositionAPIKey, datafetcher.ClientOptions{})
	if err != nil {
		return nil, nil, err
	}
	return api, nil, nil
}

// newEngine builds the rebalance engine. The returned refresher is nil unless
// live gas pricing is enabled.
func newEngine(ctx context.Context, cfg *config.Config) (*strategy.Engine, strategy.Refresher, error) {
	engineCfg := strategy.Config{Rebalance: cfg.Rebalance}

	var refresher strategy.Refresher
	if cfg.LiveGasPrice {
		feed, err := datafetcher.NewPriceFeed(cfg.Endpoints.PriceAPI, cfg.Endpoints.PriceAPIKey, datafetcher.ClientOptions{})
		if err != nil {
			return nil, nil, err
		}
		priced, err := strategy.NewPricedGasEstimator(strategy.DefaultGasEstimator(), feed, config.GasPriceSymbol, config.GasPriceMaxAge)
		if err != nil {
			return nil, nil, err
		}
		if err := priced.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial gas price refresh failed, using the fixed SOL price")
		}
		engineCfg.GasEstimator = priced
		refresher = priced
	}

	engine, err := strategy.NewEngine(engineCfg)
	if err != nil {
		return nil, nil, err
	}
	return engine, refresher, nil
}

func newExecutor(cfg *config.Config) (executor.Executor, error) {
	return executor.NewSimulatedExecutor(executor.Config{SlippagePercent: cfg.SlippagePercent})
}

func newDispatcher(cfg *config.Config) *notify.Dispatcher {
	var senders []notify.Sender
	if cfg.Notifications.TelegramBotToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notifications.TelegramBotToken, cfg.Notifications.TelegramChatID))
	}
	if cfg.Notifications.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notifications.DiscordWebhookURL))
	}
	return notify.NewDispatcher(senders...)
}
