package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "So11111111111111111111111111111111111111112"

var configEnvKeys = []string{
	"WALLET_PUBLIC_KEY", "MONITOR_INTERVAL_MINUTES", "AUTO_REBALANCE_ENABLED", "AUTO_COMPOUND_ENABLED",
	"MIN_HARVEST_THRESHOLD_USD", "SLIPPAGE_PERCENT", "PRICE_MOVEMENT_THRESHOLD", "RANGE_PERCENT",
	"MIN_REBALANCE_INTERVAL_MINUTES", "MAX_GAS_COST_USD", "MIN_POSITION_VALUE_USD", "LIVE_GAS_PRICE",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DISCORD_WEBHOOK_URL", "DATABASE_URL", "WEB_PORT",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "SOLANA_RPC_URL", "POSITION_API_URL", "POSITION_API_KEY",
	"PRICE_API_URL", "CRYPTOCOMPARE_API",
}

// clearEnv blanks every variable LoadConfig reads and returns a config file
// path for tests that want one.
func clearEnv(t *testing.T) string {
	t.Helper()
	for _, key := range append(configEnvKeys, "CONFIG_FILE") {
		t.Setenv(key, "")
	}
	return filepath.Join(t.TempDir(), "clmm-monitor.yml")
}

func TestLoadConfigDefaults(t *testing.T) {
	path := clearEnv(t)
	require.NoError(t, WriteDefaultFile(path))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WALLET_PUBLIC_KEY", " "+testWallet+" ")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, testWallet, cfg.WalletAddress)
	assert.Equal(t, testWallet, cfg.WalletPublicKey.String())
	assert.Equal(t, 5*time.Minute, cfg.MonitorInterval)
	assert.False(t, cfg.AutoRebalance)
	assert.Equal(t, 10.0, cfg.MinHarvestThresholdUSD)
	assert.Equal(t, DefaultRebalanceConfig, cfg.Rebalance)
	assert.Equal(t, DefaultWebPort, cfg.WebPort)
	assert.Equal(t, DefaultSolanaRPC, cfg.Endpoints.SolanaRPC)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadConfigRequiresWallet(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := LoadConfigWithoutWallet()
	require.NoError(t, err)
	assert.Empty(t, cfg.WalletAddress)
}

func TestLoadConfigRejectsInvalidWallet(t *testing.T) {
	clearEnv(t)
	t.Setenv("WALLET_PUBLIC_KEY", "not-a-solana-address")

	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WALLET_PUBLIC_KEY", testWallet)
	t.Setenv("MONITOR_INTERVAL_MINUTES", "1.5")
	t.Setenv("AUTO_REBALANCE_ENABLED", "true")
	t.Setenv("PRICE_MOVEMENT_THRESHOLD", "2.5")
	t.Setenv("RANGE_PERCENT", "20")
	t.Setenv("MIN_REBALANCE_INTERVAL_MINUTES", "30")
	t.Setenv("MAX_GAS_COST_USD", "1")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("WEB_PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.MonitorInterval)
	assert.True(t, cfg.AutoRebalance)
	assert.Equal(t, 2.5, cfg.Rebalance.PriceMovementThreshold)
	assert.Equal(t, 20.0, cfg.Rebalance.DefaultRangePercent)
	assert.Equal(t, 30*time.Minute, cfg.Rebalance.MinRebalanceInterval)
	assert.Equal(t, 1.0, cfg.Rebalance.MaxGasCostUSD)
	assert.Equal(t, "42", cfg.Notifications.TelegramChatID)
	assert.Equal(t, "9090", cfg.WebPort)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadConfigInvalidValues(t *testing.T) {
	cases := map[string]string{
		"MONITOR_INTERVAL_MINUTES": "0",
		"AUTO_REBALANCE_ENABLED":   "maybe",
		"RANGE_PERCENT":            "150",
		"MAX_GAS_COST_USD":         "five",
		"WEB_PORT":                 "http",
		"LOG_FORMAT":               "xml",
		"TELEGRAM_BOT_TOKEN":       "token-without-chat",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WALLET_PUBLIC_KEY", testWallet)
			t.Setenv(key, value)

			_, err := LoadConfig()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigFileThenEnv(t *testing.T) {
	path := clearEnv(t)
	content := `
automation:
  check_interval: 2
  auto_compound: true
  rebalance_threshold: 3
  compound_threshold: 25
defaults:
  price_range: 15
notifications:
  enabled: true
  webhook_url: "https://discord.example/hook"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WALLET_PUBLIC_KEY", testWallet)
	t.Setenv("RANGE_PERCENT", "12")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.MonitorInterval)
	assert.True(t, cfg.AutoCompound)
	assert.Equal(t, 3.0, cfg.Rebalance.PriceMovementThreshold)
	assert.Equal(t, 25.0, cfg.MinHarvestThresholdUSD)
	assert.Equal(t, 12.0, cfg.Rebalance.DefaultRangePercent)
	assert.Equal(t, "https://discord.example/hook", cfg.Notifications.DiscordWebhookURL)
}

func TestExplicitMissingConfigFileFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yml"))
	t.Setenv("WALLET_PUBLIC_KEY", testWallet)

	_, err := LoadConfig()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMalformedConfigFile(t *testing.T) {
	path := clearEnv(t)
	require.NoError(t, os.WriteFile(path, []byte("automation: [not, a, map"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WALLET_PUBLIC_KEY", testWallet)

	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWriteDefaultFileNeverOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clmm-monitor.yml")
	require.NoError(t, WriteDefaultFile(path))

	err := WriteDefaultFile(path)
	assert.ErrorIs(t, err, ErrConfigFileExists)

	file, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, file.Automation.CheckInterval)
	assert.Equal(t, 5.0, *file.Automation.CheckInterval)
}

func TestCCIdForSymbol(t *testing.T) {
	assert.Equal(t, "SOL", CCIdForSymbol("wsol"))
	assert.Equal(t, "ETH", CCIdForSymbol("WETH"))
	assert.Equal(t, "PYTH", CCIdForSymbol(" pyth "))
}
