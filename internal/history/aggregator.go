/*

HistoryAggregator: merges the independently-sparse upstream series (APY,
net APY, total assets USD, raw total assets, share price or total supply)
into one aligned, strictly ascending sequence of HistoryPoints.

Series share a sampling grid upstream, so lookups are by exact timestamp
match with no interpolation; a series missing a point contributes a
derived or zero value, never causes the point to be dropped.

*/

package history

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openvaults/vaultbridge/internal/adapter"
	"github.com/openvaults/vaultbridge/internal/config"
	"github.com/openvaults/vaultbridge/internal/datafetcher"
	"github.com/openvaults/vaultbridge/internal/types"
)

// Inputs carries everything needed to aggregate one vault's history.
type Inputs struct {
	Series        *datafetcher.HistorySeries
	Version       types.SchemaVersion
	AssetDecimals int
	// SpotPriceUSD is the current asset price, used by the per-point
	// reconciliation and as the fallback when a historical price cannot
	// be derived.
	SpotPriceUSD decimal.Decimal
}

// Aggregate merges the input series over the union of their timestamps and
// trims the leading all-zero points that precede the first deposit.
// Output timestamps are strictly ascending and unique.
func Aggregate(in Inputs) []types.HistoryPoint {
	if in.Series == nil {
		return []types.HistoryPoint{}
	}

	apy := indexSeries(in.Series.APY)
	netAPY := indexSeries(in.Series.NetAPY)
	assetsUSD := indexSeries(in.Series.TotalAssetsUSD)
	assetsRaw := indexSeries(in.Series.TotalAssetsRaw)
	sharePrice := indexSeries(in.Series.SharePrice)
	supplyRaw := indexSeries(in.Series.TotalSupplyRaw)

	timestamps := unionTimestamps(apy, netAPY, assetsUSD, assetsRaw, sharePrice, supplyRaw)

	points := make([]types.HistoryPoint, 0, len(timestamps))
	for _, ts := range timestamps {
		usd := assetsUSD[ts]
		raw := assetsRaw[ts]

		totalAssets := adapter.ReconcileTotalAssets(raw, usd, in.SpotPriceUSD, in.AssetDecimals)

		price := sharePrice[ts]
		if price.IsZero() {
			// Derive assets-per-share from the totals when the share
			// price is not directly reported (always the case for v2).
			if supply := supplyRaw[ts].Shift(int32(-config.ShareDecimals)); supply.Sign() > 0 {
				price = totalAssets.Div(supply)
			}
		}

		// Historical asset price from the concurrent USD sample when
		// both sides are positive, else the current spot price.
		histPrice := in.SpotPriceUSD
		if usd.Sign() > 0 && totalAssets.Sign() > 0 {
			histPrice = usd.Div(totalAssets)
		}

		points = append(points, types.HistoryPoint{
			Timestamp:          ts,
			TotalAssetsUSD:     usd,
			TotalAssetsDecimal: totalAssets,
			SharePrice:         price,
			SharePriceUSD:      price.Mul(histPrice),
			APY:                apy[ts],
			NetAPY:             netAPY[ts],
		})
	}

	return trimLeadingZero(points)
}

// FilterPeriod applies a timestamp cutoff after aggregation. "all" keeps
// every point. The period value is assumed validated by the caller.
func FilterPeriod(points []types.HistoryPoint, period string, now time.Time) []types.HistoryPoint {
	if period == "all" {
		return points
	}
	window, ok := config.HistoryPeriods[period]
	if !ok {
		return points
	}

	cutoff := now.Add(-window).Unix()
	filtered := make([]types.HistoryPoint, 0, len(points))
	for _, p := range points {
		if p.Timestamp >= cutoff {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func indexSeries(points []types.SeriesPoint) map[int64]decimal.Decimal {
	index := make(map[int64]decimal.Decimal, len(points))
	for _, p := range points {
		index[p.Timestamp] = p.Value
	}
	return index
}

func unionTimestamps(series ...map[int64]decimal.Decimal) []int64 {
	seen := make(map[int64]struct{})
	for _, s := range series {
		for ts := range s {
			seen[ts] = struct{}{}
		}
	}

	timestamps := make([]int64, 0, len(seen))
	for ts := range seen {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps
}

// trimLeadingZero drops the points before any deposit occurred. Trimming
// happens on the full aggregated picture, before any period filter.
func trimLeadingZero(points []types.HistoryPoint) []types.HistoryPoint {
	start := 0
	for start < len(points) {
		p := points[start]
		if !p.TotalAssetsUSD.IsZero() || !p.TotalAssetsDecimal.IsZero() || !p.SharePrice.IsZero() {
			break
		}
		start++
	}
	return points[start:]
}
