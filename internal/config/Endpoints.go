package config

import (
	"github.com/rs/zerolog/log"
)

const (
	DefaultSolanaRPC = "https://api.mainnet-beta.solana.com"
	DefaultPriceAPI  = "https://min-api.cryptocompare.com/data/price"
)

// EndpointConfig holds the external endpoints the monitor talks to.
type EndpointConfig struct {
	// SolanaRPC is the JSON-RPC endpoint used for wallet checks.
	SolanaRPC string
	// PositionAPI serves wallet positions as JSON. Empty selects the built-in demo portfolio.
	PositionAPI string
	// PositionAPIKey is sent as a bearer token to PositionAPI when set.
	PositionAPIKey string
	// PriceAPI is the CryptoCompare spot price endpoint.
	PriceAPI string
	// PriceAPIKey is the CryptoCompare API key. Optional for low request rates.
	PriceAPIKey string
}

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig(cfg *EndpointConfig) {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	cfg.SolanaRPC = getEnvOrDefault("SOLANA_RPC_URL", DefaultSolanaRPC)
	cfg.PositionAPI = getEnvOrDefault("POSITION_API_URL", "")
	cfg.PositionAPIKey = getEnvOrDefault("POSITION_API_KEY", "")
	cfg.PriceAPI = getEnvOrDefault("PRICE_API_URL", DefaultPriceAPI)
	cfg.PriceAPIKey = getEnvOrDefault("CRYPTOCOMPARE_API", "")

	log.Debug().
		Str("SolanaRPC", cfg.SolanaRPC).
		Str("PositionAPI", cfg.PositionAPI).
		Str("PriceAPI", cfg.PriceAPI).
		Bool("PriceAPIKeySet", cfg.PriceAPIKey != "").
		Msg("Endpoint configuration loaded successfully.")
}
