/*

Historical series queries. Each series arrives independently sparse; the
history aggregator is responsible for aligning them. The raw totalAssets
series is passed through untouched here, including the upstream unit
inconsistency the aggregator reconciles per point.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/openvaults/vaultbridge/internal/types"
)

// HistorySeries carries the independently-sparse upstream series for one
// vault. SharePrice is only populated for v1; TotalSupplyRaw only for v2
// (v2 never reports a share price, it is derived from totals).
type HistorySeries struct {
	APY            []types.SeriesPoint
	NetAPY         []types.SeriesPoint
	TotalAssetsUSD []types.SeriesPoint
	TotalAssetsRaw []types.SeriesPoint
	SharePrice     []types.SeriesPoint
	TotalSupplyRaw []types.SeriesPoint
}

const vaultHistoryV1Query = `
query VaultHistory($address: String!, $chainId: Int!) {
  vaultByAddress(address: $address, chainId: $chainId) {
    historicalState {
      apy { x y }
      netApy { x y }
      totalAssets { x y }
      totalAssetsUsd { x y }
      sharePrice { x y }
    }
  }
}`

const vaultHistoryV2Query = `
query VaultV2History($address: String!, $chainId: Int!) {
  vaultV2ByAddress(address: $address, chainId: $chainId) {
    historicalState {
      avgApy { x y }
      avgNetApy { x y }
      totalAssets { x y }
      totalAssetsUsd { x y }
      totalSupply { x y }
    }
  }
}`

// FetchHistory retrieves the sparse historical series for the declared
// schema version. A vault with no history yields empty series, not an
// error.
func (c *Client) FetchHistory(ctx context.Context, address string, chainID int64, version types.SchemaVersion) (*HistorySeries, error) {
	variables := map[string]interface{}{
		"address": address,
		"chainId": chainID,
	}

	switch version {
	case types.SchemaV1:
		var out struct {
			Vault *struct {
				HistoricalState *struct {
					APY            []types.SeriesPoint `json:"apy"`
					NetAPY         []types.SeriesPoint `json:"netApy"`
					TotalAssets    []types.SeriesPoint `json:"totalAssets"`
					TotalAssetsUSD []types.SeriesPoint `json:"totalAssetsUsd"`
					SharePrice     []types.SeriesPoint `json:"sharePrice"`
				} `json:"historicalState"`
			} `json:"vaultByAddress"`
		}
		if err := c.Query(ctx, vaultHistoryV1Query, variables, &out); err != nil {
			if errors.Is(err, ErrNotFound) {
				return &HistorySeries{}, nil
			}
			return nil, err
		}
		if out.Vault == nil || out.Vault.HistoricalState == nil {
			return &HistorySeries{}, nil
		}
		hs := out.Vault.HistoricalState
		return &HistorySeries{
			APY:            hs.APY,
			NetAPY:         hs.NetAPY,
			TotalAssetsUSD: hs.TotalAssetsUSD,
			TotalAssetsRaw: hs.TotalAssets,
			SharePrice:     hs.SharePrice,
		}, nil

	case types.SchemaV2:
		var out struct {
			Vault *struct {
				HistoricalState *struct {
					AvgAPY         []types.SeriesPoint `json:"avgApy"`
					AvgNetAPY      []types.SeriesPoint `json:"avgNetApy"`
					TotalAssets    []types.SeriesPoint `json:"totalAssets"`
					TotalAssetsUSD []types.SeriesPoint `json:"totalAssetsUsd"`
					TotalSupply    []types.SeriesPoint `json:"totalSupply"`
				} `json:"historicalState"`
			} `json:"vaultV2ByAddress"`
		}
		if err := c.Query(ctx, vaultHistoryV2Query, variables, &out); err != nil {
			if errors.Is(err, ErrNotFound) {
				return &HistorySeries{}, nil
			}
			return nil, err
		}
		if out.Vault == nil || out.Vault.HistoricalState == nil {
			return &HistorySeries{}, nil
		}
		hs := out.Vault.HistoricalState
		return &HistorySeries{
			APY:            hs.AvgAPY,
			NetAPY:         hs.AvgNetAPY,
			TotalAssetsUSD: hs.TotalAssetsUSD,
			TotalAssetsRaw: hs.TotalAssets,
			TotalSupplyRaw: hs.TotalSupply,
		}, nil

	default:
		return nil, fmt.Errorf("unknown schema version: %s", version)
	}
}
