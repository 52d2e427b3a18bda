package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrConfigFileExists = errors.New("config file already exists")

// DefaultFileTemplate is written by `config --init`.
const DefaultFileTemplate = `# CLMM Monitor Configuration
# Environment variables override every value in this file.

# Automation Settings
automation:
  check_interval: 5       # minutes
  auto_rebalance: false
  auto_compound: false
  rebalance_threshold: 5  # percent price movement outside the range
  compound_threshold: 10  # USD minimum pending fees to compound

# Position Defaults
defaults:
  price_range: 10  # percent ±
  slippage: 0.5    # percent

# Notifications
notifications:
  enabled: false
  # webhook_url: "https://discord.com/api/webhooks/..."
`

// FileConfig is the YAML config file layout. Pointer fields distinguish
// "unset" from an explicit zero.
type FileConfig struct {
	Automation struct {
		CheckInterval      *float64 `yaml:"check_interval"`
		AutoRebalance      *bool    `yaml:"auto_rebalance"`
		AutoCompound       *bool    `yaml:"auto_compound"`
		RebalanceThreshold *float64 `yaml:"rebalance_threshold"`
		CompoundThreshold  *float64 `yaml:"compound_threshold"`
	} `yaml:"automation"`

	Defaults struct {
		PriceRange *float64 `yaml:"price_range"`
		Slippage   *float64 `yaml:"slippage"`
	} `yaml:"defaults"`

	Notifications struct {
		Enabled    bool   `yaml:"enabled"`
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notifications"`
}

// LoadFile parses the YAML config file at path.
func LoadFile(path string) (FileConfig, error) {
	var file FileConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("%w: parse config file %s: %v", ErrInvalidConfig, path, err)
	}
	return file, nil
}

// WriteDefaultFile creates path with DefaultFileTemplate. It never overwrites.
func WriteDefaultFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrConfigFileExists, path)
		}
		return err
	}
	defer f.Close()

	_, err = f.WriteString(DefaultFileTemplate)
	return err
}

func (f FileConfig) apply(cfg *Config) {
	a := f.Automation
	if a.CheckInterval != nil {
		cfg.MonitorInterval = minutes(*a.CheckInterval)
	}
	if a.AutoRebalance != nil {
		cfg.AutoRebalance = *a.AutoRebalance
	}
	if a.AutoCompound != nil {
		cfg.AutoCompound = *a.AutoCompound
	}
	if a.RebalanceThreshold != nil {
		cfg.Rebalance.PriceMovementThreshold = *a.RebalanceThreshold
	}
	if a.CompoundThreshold != nil {
		cfg.MinHarvestThresholdUSD = *a.CompoundThreshold
	}
	if f.Defaults.PriceRange != nil {
		cfg.Rebalance.DefaultRangePercent = *f.Defaults.PriceRange
	}
	if f.Defaults.Slippage != nil {
		cfg.SlippagePercent = *f.Defaults.Slippage
	}
	if f.Notifications.Enabled && f.Notifications.WebhookURL != "" {
		cfg.Notifications.DiscordWebhookURL = f.Notifications.WebhookURL
	}
}
