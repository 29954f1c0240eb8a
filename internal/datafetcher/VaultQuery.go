/*

Vault snapshot queries for both upstream generations.

v1 (`vaultByAddress`) nests all metrics under `state` and reports
apy/netApy directly. v2 (`vaultV2ByAddress`) exposes metrics at the top
level, reports averaged APYs (`avgApy`/`avgNetApy`), allocates through
`adapters`, and does not report a share price at all.

The schema version is always declared by the caller; the fetcher never
sniffs the response shape.

*/

package datafetcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openvaults/vaultbridge/internal/types"
)

// AssetPayload is the upstream asset descriptor, shared by both versions.
type AssetPayload struct {
	Symbol   string          `json:"symbol"`
	Decimals int             `json:"decimals"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
}

// MarketPayload identifies the market an allocation supplies into.
// UniqueKey is the only reliable identity: multiple markets can share a
// loan/collateral symbol pair.
type MarketPayload struct {
	UniqueKey       string `json:"uniqueKey"`
	LoanAsset       struct {
		Symbol string `json:"symbol"`
	} `json:"loanAsset"`
	CollateralAsset struct {
		Symbol string `json:"symbol"`
	} `json:"collateralAsset"`
}

// AllocationPayloadV1 is one entry of v1's state.allocation[].
type AllocationPayloadV1 struct {
	Market          MarketPayload   `json:"market"`
	SupplyAssetsUSD decimal.Decimal `json:"supplyAssetsUsd"`
}

// VaultStateV1 is v1's nested state object.
type VaultStateV1 struct {
	TotalAssets          string                `json:"totalAssets"` // raw smallest-unit integer
	TotalAssetsUSD       decimal.Decimal       `json:"totalAssetsUsd"`
	TotalSupply          string                `json:"totalSupply"` // raw 18-decimal shares
	SharePrice           decimal.Decimal       `json:"sharePrice"`
	SharePriceUSD        decimal.Decimal       `json:"sharePriceUsd"`
	APY                  decimal.Decimal       `json:"apy"`
	NetAPY               decimal.Decimal       `json:"netApy"`
	NetAPYWithoutRewards decimal.Decimal       `json:"netApyWithoutRewards"`
	RewardsAPR           decimal.Decimal       `json:"rewardsApr"`
	Allocation           []AllocationPayloadV1 `json:"allocation"`
}

// VaultPayloadV1 is the raw v1 vault payload.
type VaultPayloadV1 struct {
	Address string        `json:"address"`
	Name    string        `json:"name"`
	Asset   AssetPayload  `json:"asset"`
	State   *VaultStateV1 `json:"state"`
}

// AdapterPayloadV2 is one sub-strategy allocation of a v2 vault.
type AdapterPayloadV2 struct {
	ID            string          `json:"id"`
	Market        MarketPayload   `json:"market"`
	AllocationUSD decimal.Decimal `json:"allocationUsd"`
}

// VaultPayloadV2 is the raw v2 vault payload. Metrics are flat; there is
// no reported share price, it must be derived from totals.
type VaultPayloadV2 struct {
	Address                 string             `json:"address"`
	Name                    string             `json:"name"`
	Asset                   AssetPayload       `json:"asset"`
	TotalAssets             string             `json:"totalAssets"`
	TotalAssetsUSD          decimal.Decimal    `json:"totalAssetsUsd"`
	TotalSupply             string             `json:"totalSupply"`
	AvgAPY                  decimal.Decimal    `json:"avgApy"`
	AvgNetAPY               decimal.Decimal    `json:"avgNetApy"`
	AvgNetAPYWithoutRewards decimal.Decimal    `json:"avgNetApyWithoutRewards"`
	RewardsAPR              decimal.Decimal    `json:"rewardsApr"`
	Adapters                []AdapterPayloadV2 `json:"adapters"`
}

// VaultPayload is the tagged union handed to the schema adapter. Exactly
// one of V1/V2 is set, matching Version.
type VaultPayload struct {
	Version types.SchemaVersion
	V1      *VaultPayloadV1
	V2      *VaultPayloadV2
}

const vaultByAddressQuery = `
query VaultByAddress($address: String!, $chainId: Int!) {
  vaultByAddress(address: $address, chainId: $chainId) {
    address
    name
    asset { symbol decimals priceUsd }
    state {
      totalAssets
      totalAssetsUsd
      totalSupply
      sharePrice
      sharePriceUsd
      apy
      netApy
      netApyWithoutRewards
      rewardsApr
      allocation {
        market {
          uniqueKey
          loanAsset { symbol }
          collateralAsset { symbol }
        }
        supplyAssetsUsd
      }
    }
  }
}`

const vaultV2ByAddressQuery = `
query VaultV2ByAddress($address: String!, $chainId: Int!) {
  vaultV2ByAddress(address: $address, chainId: $chainId) {
    address
    name
    asset { symbol decimals priceUsd }
    totalAssets
    totalAssetsUsd
    totalSupply
    avgApy
    avgNetApy
    avgNetApyWithoutRewards
    rewardsApr
    adapters {
      id
      market {
        uniqueKey
        loanAsset { symbol }
        collateralAsset { symbol }
      }
      allocationUsd
    }
  }
}`

// FetchVault retrieves the raw vault payload for the declared schema
// version. ErrNotFound is returned when upstream has no such vault.
func (c *Client) FetchVault(ctx context.Context, address string, chainID int64, version types.SchemaVersion) (*VaultPayload, error) {
	variables := map[string]interface{}{
		"address": address,
		"chainId": chainID,
	}

	switch version {
	case types.SchemaV1:
		var out struct {
			Vault *VaultPayloadV1 `json:"vaultByAddress"`
		}
		if err := c.Query(ctx, vaultByAddressQuery, variables, &out); err != nil {
			return nil, err
		}
		if out.Vault == nil {
			return nil, ErrNotFound
		}
		fetchLogger.Debug().Str("address", address).Int64("chainId", chainID).Msg("Fetched v1 vault payload")
		return &VaultPayload{Version: types.SchemaV1, V1: out.Vault}, nil

	case types.SchemaV2:
		var out struct {
			Vault *VaultPayloadV2 `json:"vaultV2ByAddress"`
		}
		if err := c.Query(ctx, vaultV2ByAddressQuery, variables, &out); err != nil {
			return nil, err
		}
		if out.Vault == nil {
			return nil, ErrNotFound
		}
		fetchLogger.Debug().Str("address", address).Int64("chainId", chainID).Msg("Fetched v2 vault payload")
		return &VaultPayload{Version: types.SchemaV2, V2: out.Vault}, nil

	default:
		return nil, fmt.Errorf("unknown schema version: %s", version)
	}
}
