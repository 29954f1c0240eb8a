/*

Canonical vault model. Both upstream schema generations (v1 nested state,
v2 flat fields with adapters) normalize into VaultSnapshot, so everything
downstream of the adapter is version-agnostic.

*/

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersion identifies which upstream API generation a vault payload
// came from. It is declared by the caller, never sniffed from the response
// shape.
type SchemaVersion string

const (
	SchemaV1 SchemaVersion = "v1"
	SchemaV2 SchemaVersion = "v2"
)

// Asset describes the single underlying asset of a vault.
type Asset struct {
	Symbol   string          `json:"symbol"`    // e.g., "USDC"
	Decimals int             `json:"decimals"`  // e.g., 6
	PriceUSD decimal.Decimal `json:"price_usd"` // spot price of one whole unit
}

// AllocationEntry is one market a vault allocates into.
// Entries are keyed by MarketKey, never by the loan/collateral symbol pair:
// multiple markets can share a symbol pair and must not be collapsed.
type AllocationEntry struct {
	MarketKey         string          `json:"market_key"`
	LoanSymbol        string          `json:"loan_symbol"`
	CollateralSymbol  string          `json:"collateral_symbol"`
	SupplyAssetsUSD   decimal.Decimal `json:"supply_assets_usd"`
	PercentageOfVault decimal.Decimal `json:"percentage_of_vault"` // fraction of TotalAssetsUSD
}

// VaultSnapshot is the canonical per-vault state. It is constructed fresh
// on every fetch and never mutated in place; a new snapshot replaces the
// old one so concurrent readers never observe a half-updated object.
type VaultSnapshot struct {
	Address       string        `json:"address"`
	ChainID       int64         `json:"chain_id"`
	SchemaVersion SchemaVersion `json:"schema_version"`
	Name          string        `json:"name,omitempty"`

	Asset Asset `json:"asset"`

	TotalAssetsRaw string          `json:"total_assets_raw"` // integer string, smallest unit
	TotalAssetsUSD decimal.Decimal `json:"total_assets_usd"`
	TotalSupplyRaw string          `json:"total_supply_raw"` // integer string, 18-decimal shares
	SharePrice     decimal.Decimal `json:"share_price"`      // assets per share
	SharePriceUSD  decimal.Decimal `json:"share_price_usd"`

	// APY-family fields are fractions (0.05 = 5%), not percentages,
	// until presentation.
	APY                  decimal.Decimal `json:"apy"`
	NetAPY               decimal.Decimal `json:"net_apy"`
	NetAPYWithoutRewards decimal.Decimal `json:"net_apy_without_rewards"`
	RewardsAPR           decimal.Decimal `json:"rewards_apr"`

	Allocation []AllocationEntry `json:"allocation"`

	FetchedAt time.Time `json:"fetched_at"`
}
