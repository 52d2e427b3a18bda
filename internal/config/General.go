package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// NotificationConfig selects the notification channels. A channel is enabled
// when its credentials are set.
type NotificationConfig struct {
	TelegramBotToken  string
	TelegramChatID    string
	DiscordWebhookURL string
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Format string // "console" or "json"
	File   string
}

// Config holds all application configuration.
// Values are resolved in order: defaults, config file, environment.
type Config struct {
	// WalletAddress is the base58 public key whose positions are monitored.
	WalletAddress   string
	WalletPublicKey solana.PublicKey

	MonitorInterval time.Duration
	AutoRebalance   bool
	AutoCompound    bool
	// MinHarvestThresholdUSD is the pending-fee total above which a cycle is compound eligible.
	MinHarvestThresholdUSD float64
	SlippagePercent        float64

	Rebalance types.RebalanceConfig
	// LiveGasPrice prices gas with the CryptoCompare SOL spot price instead of the fixed assumption.
	LiveGasPrice bool

	Notifications NotificationConfig
	Endpoints     EndpointConfig
	Log           LogConfig

	// DatabaseURL enables the Postgres cycle history when set.
	DatabaseURL string
	// WebPort is the dashboard/API port. Empty disables the web server.
	WebPort string

	// ConfigFile is the file that was applied, empty if none.
	ConfigFile string
}

// Default returns the configuration used before any file or environment override.
func Default() Config {
	return Config{
		MonitorInterval:        DefaultMonitorInterval,
		MinHarvestThresholdUSD: DefaultMinHarvestThresholdUSD,
		SlippagePercent:        DefaultSlippagePercent,
		Rebalance:              DefaultRebalanceConfig,
		Log:                    LogConfig{Level: "info", Format: "console"},
		WebPort:                DefaultWebPort,
		Endpoints: EndpointConfig{
			SolanaRPC: DefaultSolanaRPC,
			PriceAPI:  DefaultPriceAPI,
		},
	}
}

// LoadConfig loads configuration from the config file and environment variables.
// WALLET_PUBLIC_KEY is required; everything else has a default.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigWithoutWallet()
	if err != nil {
		return nil, err
	}

	if cfg.WalletAddress == "" {
		return nil, fmt.Errorf("%w: environment variable WALLET_PUBLIC_KEY is required but not set", ErrInvalidConfig)
	}

	log.Debug().
		Str("WalletAddress", cfg.WalletAddress).
		Dur("MonitorInterval", cfg.MonitorInterval).
		Bool("AutoRebalance", cfg.AutoRebalance).
		Bool("AutoCompound", cfg.AutoCompound).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// LoadConfigWithoutWallet is LoadConfig for commands that can run without a
// wallet, such as the tick calculator. The wallet is still validated when set.
func LoadConfigWithoutWallet() (*Config, error) {
	log.Info().Msg("Loading application configuration...")

	cfg := Default()

	path := getEnvOrDefault("CONFIG_FILE", "")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	path = expandHome(path)
	file, err := LoadFile(path)
	switch {
	case err == nil:
		file.apply(&cfg)
		cfg.ConfigFile = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
		log.Debug().Str("path", path).Msg("No config file found, using defaults")
	default:
		return nil, err
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.WalletAddress = strings.TrimSpace(getEnvOrDefault("WALLET_PUBLIC_KEY", cfg.WalletAddress))

	interval, err := getEnvAsFloat64OrDefault("MONITOR_INTERVAL_MINUTES", cfg.MonitorInterval.Minutes())
	if err != nil {
		return err
	}
	cfg.MonitorInterval = minutes(interval)

	if cfg.AutoRebalance, err = getEnvAsBoolOrDefault("AUTO_REBALANCE_ENABLED", cfg.AutoRebalance); err != nil {
		return err
	}
	if cfg.AutoCompound, err = getEnvAsBoolOrDefault("AUTO_COMPOUND_ENABLED", cfg.AutoCompound); err != nil {
		return err
	}
	if cfg.MinHarvestThresholdUSD, err = getEnvAsFloat64OrDefault("MIN_HARVEST_THRESHOLD_USD", cfg.MinHarvestThresholdUSD); err != nil {
		return err
	}
	if cfg.SlippagePercent, err = getEnvAsFloat64OrDefault("SLIPPAGE_PERCENT", cfg.SlippagePercent); err != nil {
		return err
	}

	if cfg.Rebalance.PriceMovementThreshold, err = getEnvAsFloat64OrDefault("PRICE_MOVEMENT_THRESHOLD", cfg.Rebalance.PriceMovementThreshold); err != nil {
		return err
	}
	if cfg.Rebalance.DefaultRangePercent, err = getEnvAsFloat64OrDefault("RANGE_PERCENT", cfg.Rebalance.DefaultRangePercent); err != nil {
		return err
	}
	cooldown, err := getEnvAsFloat64OrDefault("MIN_REBALANCE_INTERVAL_MINUTES", cfg.Rebalance.MinRebalanceInterval.Minutes())
	if err != nil {
		return err
	}
	cfg.Rebalance.MinRebalanceInterval = minutes(cooldown)
	if cfg.Rebalance.MaxGasCostUSD, err = getEnvAsFloat64OrDefault("MAX_GAS_COST_USD", cfg.Rebalance.MaxGasCostUSD); err != nil {
		return err
	}
	if cfg.Rebalance.MinPositionValueUSD, err = getEnvAsFloat64OrDefault("MIN_POSITION_VALUE_USD", cfg.Rebalance.MinPositionValueUSD); err != nil {
		return err
	}
	if cfg.LiveGasPrice, err = getEnvAsBoolOrDefault("LIVE_GAS_PRICE", cfg.LiveGasPrice); err != nil {
		return err
	}

	cfg.Notifications.TelegramBotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Notifications.TelegramBotToken)
	cfg.Notifications.TelegramChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Notifications.TelegramChatID)
	cfg.Notifications.DiscordWebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.Notifications.DiscordWebhookURL)

	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.WebPort = getEnvOrDefault("WEB_PORT", cfg.WebPort)

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = expandHome(getEnvOrDefault("LOG_FILE", cfg.Log.File))

	loadEndpointConfig(&cfg.Endpoints)
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.WalletAddress != "" {
		key, err := solana.PublicKeyFromBase58(cfg.WalletAddress)
		if err != nil {
			return fmt.Errorf("%w: WALLET_PUBLIC_KEY %q is not a valid Solana address: %v", ErrInvalidConfig, cfg.WalletAddress, err)
		}
		cfg.WalletPublicKey = key
	}
	if cfg.MonitorInterval <= 0 {
		return fmt.Errorf("%w: monitor interval must be positive, got %s", ErrInvalidConfig, cfg.MonitorInterval)
	}
	if cfg.MinHarvestThresholdUSD < 0 {
		return fmt.Errorf("%w: MIN_HARVEST_THRESHOLD_USD cannot be negative: %f", ErrInvalidConfig, cfg.MinHarvestThresholdUSD)
	}
	if cfg.SlippagePercent < 0 || cfg.SlippagePercent >= 100 {
		return fmt.Errorf("%w: SLIPPAGE_PERCENT must be in [0, 100): %f", ErrInvalidConfig, cfg.SlippagePercent)
	}
	if err := cfg.Rebalance.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if (cfg.Notifications.TelegramBotToken == "") != (cfg.Notifications.TelegramChatID == "") {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together", ErrInvalidConfig)
	}
	if cfg.WebPort != "" {
		port, err := strconv.Atoi(cfg.WebPort)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%w: WEB_PORT must be a valid port, got: %s", ErrInvalidConfig, cfg.WebPort)
		}
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be console or json, got: %s", ErrInvalidConfig, cfg.Log.Format)
	}
	return nil
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	value, err := getEnv(key)
	if err != nil || strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// getEnvAsFloat64OrDefault retrieves an environment variable as a float64. Returns error if set but invalid.
func getEnvAsFloat64OrDefault(key string, fallback float64) (float64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: environment variable %s must be a valid float64, got: %s", ErrInvalidConfig, key, valueStr)
	}
	return value, nil
}

// getEnvAsBoolOrDefault retrieves an environment variable as a bool. Returns error if set but invalid.
func getEnvAsBoolOrDefault(key string, fallback bool) (bool, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return false, fmt.Errorf("%w: environment variable %s must be a valid bool, got: %s", ErrInvalidConfig, key, valueStr)
	}
	return value, nil
}
