/*

VaultSchemaAdapter: maps a raw v1 or v2 upstream payload into the
canonical VaultSnapshot.

A payload missing its nested state yields a snapshot with zeroed financial
fields rather than an error, so callers can render a "no data" state
instead of crashing. Malformed address/chainId are the caller's contract
to reject before this adapter runs.

*/

package adapter

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openvaults/vaultbridge/internal/amounts"
	"github.com/openvaults/vaultbridge/internal/config"
	"github.com/openvaults/vaultbridge/internal/datafetcher"
	"github.com/openvaults/vaultbridge/internal/logger"
	"github.com/openvaults/vaultbridge/internal/types"
)

var adapterLogger = logger.GetForComponent("schema_adapter")

// Normalize maps a raw upstream vault payload into a fresh VaultSnapshot.
// The snapshot is a new value on every call; it is never mutated after
// return.
func Normalize(payload *datafetcher.VaultPayload, address string, chainID int64) (*types.VaultSnapshot, error) {
	if payload == nil {
		return nil, fmt.Errorf("vault payload cannot be nil")
	}

	switch payload.Version {
	case types.SchemaV1:
		if payload.V1 == nil {
			return nil, fmt.Errorf("v1 payload missing for declared version v1")
		}
		return normalizeV1(payload.V1, address, chainID), nil
	case types.SchemaV2:
		if payload.V2 == nil {
			return nil, fmt.Errorf("v2 payload missing for declared version v2")
		}
		return normalizeV2(payload.V2, address, chainID), nil
	default:
		return nil, fmt.Errorf("unknown schema version: %s", payload.Version)
	}
}

func normalizeV1(p *datafetcher.VaultPayloadV1, address string, chainID int64) *types.VaultSnapshot {
	snapshot := emptySnapshot(address, chainID, types.SchemaV1, p.Name, p.Asset)

	if p.State == nil {
		adapterLogger.Warn().Str("address", address).Msg("v1 payload has no state, returning zeroed snapshot")
		return snapshot
	}

	state := p.State
	snapshot.TotalAssetsRaw = orZero(state.TotalAssets)
	snapshot.TotalAssetsUSD = state.TotalAssetsUSD
	snapshot.TotalSupplyRaw = orZero(state.TotalSupply)
	snapshot.SharePrice = state.SharePrice
	snapshot.SharePriceUSD = state.SharePriceUSD
	snapshot.APY = state.APY
	snapshot.NetAPY = state.NetAPY
	snapshot.NetAPYWithoutRewards = state.NetAPYWithoutRewards
	snapshot.RewardsAPR = state.RewardsAPR

	// A v1 payload normally reports its share price; when it is missing,
	// derive it from reconciled totals the same way v2 does, so a
	// disagreeing raw totalAssets never propagates silently.
	if snapshot.SharePrice.IsZero() {
		rawAssets, errAssets := decimal.NewFromString(snapshot.TotalAssetsRaw)
		supply, errSupply := amounts.ToDecimal(snapshot.TotalSupplyRaw, config.ShareDecimals)
		if errAssets == nil && errSupply == nil && supply.Sign() > 0 {
			totalAssets := ReconcileTotalAssets(rawAssets, snapshot.TotalAssetsUSD, p.Asset.PriceUSD, p.Asset.Decimals)
			snapshot.SharePrice = totalAssets.Div(supply)
			if snapshot.SharePriceUSD.IsZero() {
				snapshot.SharePriceUSD = snapshot.SharePrice.Mul(p.Asset.PriceUSD)
			}
		}
	}

	allocation := make([]datafetcher.AllocationPayloadV1, len(state.Allocation))
	copy(allocation, state.Allocation)
	snapshot.Allocation = normalizeAllocation(allocation, snapshot.TotalAssetsUSD)

	return snapshot
}

func normalizeV2(p *datafetcher.VaultPayloadV2, address string, chainID int64) *types.VaultSnapshot {
	snapshot := emptySnapshot(address, chainID, types.SchemaV2, p.Name, p.Asset)

	snapshot.TotalAssetsRaw = orZero(p.TotalAssets)
	snapshot.TotalAssetsUSD = p.TotalAssetsUSD
	snapshot.TotalSupplyRaw = orZero(p.TotalSupply)
	snapshot.APY = p.AvgAPY
	snapshot.NetAPY = p.AvgNetAPY
	snapshot.NetAPYWithoutRewards = p.AvgNetAPYWithoutRewards
	snapshot.RewardsAPR = p.RewardsAPR

	// v2 reports no share price; derive assets-per-share from the totals.
	// The raw totalAssets goes through the same reconciliation as the
	// historical series, so an already-scaled upstream sample cannot skew
	// the derived price by 10^decimals. Shares are always 18-decimal
	// regardless of the asset's decimals.
	rawAssets, errAssets := decimal.NewFromString(snapshot.TotalAssetsRaw)
	totalSupply, errSupply := amounts.ToDecimal(snapshot.TotalSupplyRaw, config.ShareDecimals)
	if errAssets != nil || errSupply != nil {
		adapterLogger.Warn().
			Str("address", address).
			Str("totalAssets", snapshot.TotalAssetsRaw).
			Str("totalSupply", snapshot.TotalSupplyRaw).
			Msg("v2 payload has unparseable totals, leaving share price zeroed")
	} else if totalSupply.Sign() > 0 {
		totalAssets := ReconcileTotalAssets(rawAssets, snapshot.TotalAssetsUSD, p.Asset.PriceUSD, p.Asset.Decimals)
		snapshot.SharePrice = totalAssets.Div(totalSupply)
		snapshot.SharePriceUSD = snapshot.SharePrice.Mul(p.Asset.PriceUSD)
	}

	allocation := make([]datafetcher.AllocationPayloadV1, 0, len(p.Adapters))
	for _, a := range p.Adapters {
		allocation = append(allocation, datafetcher.AllocationPayloadV1{
			Market:          a.Market,
			SupplyAssetsUSD: a.AllocationUSD,
		})
	}
	snapshot.Allocation = normalizeAllocation(allocation, snapshot.TotalAssetsUSD)

	return snapshot
}

// normalizeAllocation merges entries sharing a market key (a defensive
// merge for an upstream duplication that should not occur but has) and
// computes each entry's share of the vault. Order of first appearance is
// preserved.
func normalizeAllocation(entries []datafetcher.AllocationPayloadV1, totalAssetsUSD decimal.Decimal) []types.AllocationEntry {
	merged := make(map[string]*types.AllocationEntry)
	order := make([]string, 0, len(entries))

	for _, entry := range entries {
		key := entry.Market.UniqueKey
		if key == "" {
			adapterLogger.Warn().Msg("Allocation entry without market key, skipping")
			continue
		}
		if existing, ok := merged[key]; ok {
			existing.SupplyAssetsUSD = existing.SupplyAssetsUSD.Add(entry.SupplyAssetsUSD)
			continue
		}
		merged[key] = &types.AllocationEntry{
			MarketKey:        key,
			LoanSymbol:       entry.Market.LoanAsset.Symbol,
			CollateralSymbol: entry.Market.CollateralAsset.Symbol,
			SupplyAssetsUSD:  entry.SupplyAssetsUSD,
		}
		order = append(order, key)
	}

	result := make([]types.AllocationEntry, 0, len(order))
	for _, key := range order {
		entry := merged[key]
		if totalAssetsUSD.Sign() > 0 {
			entry.PercentageOfVault = entry.SupplyAssetsUSD.Div(totalAssetsUSD)
		}
		result = append(result, *entry)
	}
	return result
}

func emptySnapshot(address string, chainID int64, version types.SchemaVersion, name string, asset datafetcher.AssetPayload) *types.VaultSnapshot {
	return &types.VaultSnapshot{
		Address:       address,
		ChainID:       chainID,
		SchemaVersion: version,
		Name:          name,
		Asset: types.Asset{
			Symbol:   asset.Symbol,
			Decimals: asset.Decimals,
			PriceUSD: asset.PriceUSD,
		},
		TotalAssetsRaw: "0",
		TotalSupplyRaw: "0",
		Allocation:     []types.AllocationEntry{},
		FetchedAt:      time.Now().UTC(),
	}
}

func orZero(raw string) string {
	if raw == "" {
		return "0"
	}
	return raw
}
