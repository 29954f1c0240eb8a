package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/openvaults/vaultbridge/internal/types"
)

// SaveVaultSnapshot persists a normalized vault snapshot for the audit
// trail and serves as the stale-read fallback when the upstream API is
// unreachable.
func SaveVaultSnapshot(snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	allocationsJSON, err := json.Marshal(snapshot.Allocation)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal allocations: %w", err)
	}

	query := `
		INSERT INTO vault_snapshots (
			vault_address, chain_id, schema_version, fetched_at,
			name, asset_symbol, asset_decimals, asset_price_usd,
			total_assets_raw, total_assets_usd, total_supply_raw,
			share_price, share_price_usd,
			apy, net_apy, rewards_apr, allocations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.Address, snapshot.ChainID, string(snapshot.SchemaVersion), snapshot.FetchedAt,
		snapshot.Name, snapshot.Asset.Symbol, snapshot.Asset.Decimals, snapshot.Asset.PriceUSD.String(),
		snapshot.TotalAssetsRaw, snapshot.TotalAssetsUSD.String(), snapshot.TotalSupplyRaw,
		snapshot.SharePrice.String(), snapshot.SharePriceUSD.String(),
		snapshot.APY.String(), snapshot.NetAPY.String(), snapshot.RewardsAPR.String(), allocationsJSON,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("vault", snapshot.Address).
		Msg("Vault snapshot saved to database")

	return snapshotID, nil
}

// LatestVaultSnapshot returns the most recent stored snapshot for a vault,
// or nil when none has been recorded.
func LatestVaultSnapshot(vaultAddress string, chainID int64) (*types.VaultSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT schema_version, fetched_at, name, asset_symbol, asset_decimals, asset_price_usd,
			total_assets_raw, total_assets_usd, total_supply_raw,
			share_price, share_price_usd, apy, net_apy, rewards_apr, allocations
		FROM vault_snapshots
		WHERE vault_address = $1 AND chain_id = $2
		ORDER BY fetched_at DESC
		LIMIT 1;
	`

	snapshot := types.VaultSnapshot{Address: vaultAddress, ChainID: chainID}
	var (
		schemaVersion  string
		priceUSD       string
		totalAssetsUSD string
		sharePrice     string
		sharePriceUSD  string
		apy            string
		netAPY         string
		rewardsAPR     string
		allocationsRaw []byte
	)

	err := DB.QueryRow(query, vaultAddress, chainID).Scan(
		&schemaVersion, &snapshot.FetchedAt, &snapshot.Name,
		&snapshot.Asset.Symbol, &snapshot.Asset.Decimals, &priceUSD,
		&snapshot.TotalAssetsRaw, &totalAssetsUSD, &snapshot.TotalSupplyRaw,
		&sharePrice, &sharePriceUSD, &apy, &netAPY, &rewardsAPR, &allocationsRaw,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest vault snapshot: %w", err)
	}

	snapshot.SchemaVersion = types.SchemaVersion(schemaVersion)

	decimalColumns := []struct {
		name string
		raw  string
		dest *decimal.Decimal
	}{
		{"asset_price_usd", priceUSD, &snapshot.Asset.PriceUSD},
		{"total_assets_usd", totalAssetsUSD, &snapshot.TotalAssetsUSD},
		{"share_price", sharePrice, &snapshot.SharePrice},
		{"share_price_usd", sharePriceUSD, &snapshot.SharePriceUSD},
		{"apy", apy, &snapshot.APY},
		{"net_apy", netAPY, &snapshot.NetAPY},
		{"rewards_apr", rewardsAPR, &snapshot.RewardsAPR},
	}
	for _, col := range decimalColumns {
		value, err := decimal.NewFromString(col.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s column: %w", col.name, err)
		}
		*col.dest = value
	}

	if len(allocationsRaw) > 0 {
		if err := json.Unmarshal(allocationsRaw, &snapshot.Allocation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allocations: %w", err)
		}
	}

	return &snapshot, nil
}
