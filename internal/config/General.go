package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ChainID is the chain ID of the target EVM network.
	ChainID int64

	// SignerKeyHex is the hex-encoded private key used to sign transactions.
	// Optional: when empty the service runs in read-only mode and the
	// transaction endpoints are disabled.
	SignerKeyHex string

	// DefaultGasLimit is the fallback gas limit if estimation fails.
	DefaultGasLimit uint64
	// GasLimitMultiplier is the multiplier applied to estimated gas.
	GasLimitMultiplier float64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ChainID, err = getEnvAsInt64("CHAIN_ID")
	if err != nil {
		return err
	}
	if ChainID <= 0 {
		return errors.New("CHAIN_ID must be a positive integer")
	}

	// Signing key is optional; read endpoints work without it.
	SignerKeyHex = os.Getenv("SIGNER_PRIVATE_KEY")

	DefaultGasLimit = getEnvAsUint64OrDefault("GAS_DEFAULT_LIMIT", 500000)
	GasLimitMultiplier = getEnvAsFloat64OrDefault("GAS_LIMIT_MULTIPLIER", 1.2)

	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Int64("ChainID", ChainID).
		Bool("signerConfigured", SignerKeyHex != "").
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable with a fallback.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsUint64OrDefault retrieves an environment variable as a uint64 with a fallback.
func getEnvAsUint64OrDefault(key string, fallback uint64) uint64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid uint64 environment variable, using default")
		return fallback
	}
	return value
}

// getEnvAsFloat64OrDefault retrieves an environment variable as a float64 with a fallback.
func getEnvAsFloat64OrDefault(key string, fallback float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid float64 environment variable, using default")
		return fallback
	}
	return value
}
