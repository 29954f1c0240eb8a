package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// GraphQLAPI is the upstream vault API endpoint (single POST endpoint,
	// serving both the v1 and v2 query families).
	GraphQLAPI string
	// NodeRPC is the JSON-RPC endpoint for the EVM node.
	NodeRPC string
	// WebPort is the port for the HTTP API surface.
	WebPort string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	GraphQLAPI, err = getEnv("GRAPHQL_API_URL")
	if err != nil {
		return err
	}

	NodeRPC, err = getEnv("NODE_RPC")
	if err != nil {
		return err
	}

	WebPort = getEnvOrDefault("WEB_PORT", "8080")

	log.Debug().
		Str("GraphQLAPI", GraphQLAPI).
		Str("NodeRPC", NodeRPC).
		Str("WebPort", WebPort).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
