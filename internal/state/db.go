package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS vault_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			vault_address VARCHAR(42) NOT NULL,
			chain_id BIGINT NOT NULL,
			schema_version VARCHAR(8) NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

			name TEXT NOT NULL,
			asset_symbol VARCHAR(32) NOT NULL,
			asset_decimals INTEGER NOT NULL,
			asset_price_usd DECIMAL(30, 18) NOT NULL,

			total_assets_raw TEXT NOT NULL,
			total_assets_usd DECIMAL(30, 8) NOT NULL,
			total_supply_raw TEXT NOT NULL,
			share_price DECIMAL(40, 18) NOT NULL,
			share_price_usd DECIMAL(30, 8) NOT NULL,

			apy DECIMAL(20, 12) NOT NULL,
			net_apy DECIMAL(20, 12) NOT NULL,
			rewards_apr DECIMAL(20, 12) NOT NULL,
			allocations JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_vault_snapshots_vault ON vault_snapshots(vault_address, chain_id, fetched_at DESC);

		CREATE TABLE IF NOT EXISTS flow_records (
			record_id SERIAL PRIMARY KEY,
			flow_id UUID NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			transaction_type VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			from_kind VARCHAR(8) NOT NULL,
			from_address VARCHAR(42) NOT NULL,
			to_kind VARCHAR(8) NOT NULL,
			to_address VARCHAR(42) NOT NULL,
			amount TEXT NOT NULL,
			asset_symbol VARCHAR(32) NOT NULL,
			transaction_hashes TEXT[],
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_flow_records_recorded_at ON flow_records(recorded_at DESC);
		CREATE INDEX IF NOT EXISTS idx_flow_records_flow_id ON flow_records(flow_id);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
