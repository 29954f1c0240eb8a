package state

import (
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/openvaults/vaultbridge/internal/types"
)

// FlowStore persists finished transaction flows. It satisfies the
// orchestrator's recorder interface over the package connection pool.
type FlowStore struct{}

// NewFlowStore returns a store backed by the global DB pool.
func NewFlowStore() *FlowStore {
	return &FlowStore{}
}

// RecordFlow saves a terminal flow (success or error) with every on-chain
// transaction hash it produced.
func (s *FlowStore) RecordFlow(flow types.TransactionState, txHashes []string) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO flow_records (
			flow_id, transaction_type, status,
			from_kind, from_address, to_kind, to_address,
			amount, asset_symbol, transaction_hashes, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`

	_, err := DB.Exec(
		query,
		flow.FlowID, string(flow.Type), string(flow.Status),
		string(flow.From.Kind), flow.From.Address, string(flow.To.Kind), flow.To.Address,
		flow.Amount, flow.DerivedAsset.Symbol, pq.Array(txHashes), flow.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction flow: %w", err)
	}

	log.Info().
		Str("flow_id", flow.FlowID).
		Str("type", string(flow.Type)).
		Str("status", string(flow.Status)).
		Int("tx_count", len(txHashes)).
		Msg("Transaction flow recorded")

	return nil
}
