package main

import (
	"context"
	"os"
	"strconv"

	"github.com/openvaults/vaultbridge/internal/config"
	"github.com/openvaults/vaultbridge/internal/datafetcher"
	"github.com/openvaults/vaultbridge/internal/logger"
	"github.com/openvaults/vaultbridge/internal/orchestrator"
	"github.com/openvaults/vaultbridge/internal/state"
	"github.com/openvaults/vaultbridge/internal/wallet"
	"github.com/openvaults/vaultbridge/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the vaultbridge service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("vaultbridge starting...")

	// Initialize Database Connection (snapshot cache + flow audit log)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Upstream GraphQL API client
	fetcher := datafetcher.NewClient(config.GraphQLAPI)

	ctx := context.Background()

	// EVM node connection. Without a signing key the service comes up in
	// read-only mode: the vault read API works, transactions are disabled.
	walletClient, err := wallet.NewClient(ctx, config.NodeRPC, config.ChainID, config.SignerKeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize wallet client")
	}
	defer walletClient.Close()

	var orch *orchestrator.Orchestrator
	if walletClient.CanSign() {
		orch, err = orchestrator.New(orchestrator.Config{
			Submitter: walletClient,
			Waiter:    wallet.NewWaiter(walletClient.Eth()),
			Recorder:  state.NewFlowStore(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create transaction orchestrator")
		}
	} else {
		log.Warn().Msg("No signing key configured, running in read-only mode")
	}

	// --- 2. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, fetcher, orch)
	log.Info().Str("port", config.WebPort).Msg("Starting vaultbridge API server")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
