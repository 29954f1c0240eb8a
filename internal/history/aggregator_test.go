package history

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvaults/vaultbridge/internal/datafetcher"
	"github.com/openvaults/vaultbridge/internal/types"
)

func pt(ts int64, v string) types.SeriesPoint {
	return types.SeriesPoint{Timestamp: ts, Value: decimal.RequireFromString(v)}
}

func TestAggregateUnionOfTimestamps(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Version:       types.SchemaV1,
		AssetDecimals: 6,
		SpotPriceUSD:  decimal.NewFromInt(1),
		Series: &datafetcher.HistorySeries{
			APY:            []types.SeriesPoint{pt(100, "0.05"), pt(300, "0.06")},
			NetAPY:         []types.SeriesPoint{pt(200, "0.04")},
			TotalAssetsUSD: []types.SeriesPoint{pt(100, "1000"), pt(200, "1100"), pt(300, "1200")},
			TotalAssetsRaw: []types.SeriesPoint{pt(100, "1000000000"), pt(200, "1100000000"), pt(300, "1200000000")},
			SharePrice:     []types.SeriesPoint{pt(100, "1.01")},
		},
	}

	points := Aggregate(in)
	require.Len(t, points, 3)

	// Union of all timestamps, strictly ascending, none dropped.
	assert.Equal(t, int64(100), points[0].Timestamp)
	assert.Equal(t, int64(200), points[1].Timestamp)
	assert.Equal(t, int64(300), points[2].Timestamp)

	// Missing series values default to zero, never drop the point.
	assert.Equal(t, "0.05", points[0].APY.String())
	assert.True(t, points[1].APY.IsZero())
	assert.Equal(t, "0.04", points[1].NetAPY.String())
	assert.True(t, points[2].NetAPY.IsZero())
}

func TestAggregateTimestampsStrictlyAscendingUnique(t *testing.T) {
	t.Parallel()

	// Overlapping and non-overlapping series with shared timestamps.
	in := Inputs{
		Version:       types.SchemaV2,
		AssetDecimals: 6,
		SpotPriceUSD:  decimal.NewFromInt(1),
		Series: &datafetcher.HistorySeries{
			APY:            []types.SeriesPoint{pt(5, "0.01"), pt(1, "0.01"), pt(3, "0.01")},
			NetAPY:         []types.SeriesPoint{pt(3, "0.01"), pt(2, "0.01")},
			TotalAssetsUSD: []types.SeriesPoint{pt(1, "10"), pt(5, "10")},
			TotalAssetsRaw: []types.SeriesPoint{pt(1, "10000000"), pt(5, "10000000")},
		},
	}

	points := Aggregate(in)
	require.NotEmpty(t, points)
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].Timestamp, points[i-1].Timestamp)
	}
}

func TestAggregateDerivesSharePriceFromTotals(t *testing.T) {
	t.Parallel()

	// v2: no share price series; 5000 USDC over 4.9 shares (18 decimals).
	in := Inputs{
		Version:       types.SchemaV2,
		AssetDecimals: 6,
		SpotPriceUSD:  decimal.NewFromInt(1),
		Series: &datafetcher.HistorySeries{
			TotalAssetsUSD: []types.SeriesPoint{pt(100, "5000")},
			TotalAssetsRaw: []types.SeriesPoint{pt(100, "5000000000")},
			TotalSupplyRaw: []types.SeriesPoint{pt(100, "4900000000000000000")},
		},
	}

	points := Aggregate(in)
	require.Len(t, points, 1)

	expected := decimal.NewFromInt(5000).Div(decimal.RequireFromString("4.9"))
	diff := points[0].SharePrice.Sub(expected).Abs()
	assert.True(t, diff.LessThan(decimal.RequireFromString("0.0001")),
		"share price %s should be ~%s", points[0].SharePrice, expected)
}

func TestAggregateReconcilesAlreadyDecimalRaw(t *testing.T) {
	t.Parallel()

	// Upstream reported this sample already decimal-scaled: converting it
	// again would inflate the chart by 10^6.
	in := Inputs{
		Version:       types.SchemaV1,
		AssetDecimals: 6,
		SpotPriceUSD:  decimal.NewFromInt(1),
		Series: &datafetcher.HistorySeries{
			TotalAssetsUSD: []types.SeriesPoint{pt(100, "1000")},
			TotalAssetsRaw: []types.SeriesPoint{pt(100, "1000")},
		},
	}

	points := Aggregate(in)
	require.Len(t, points, 1)
	assert.Equal(t, "1000", points[0].TotalAssetsDecimal.String())
}

func TestAggregateTrimsLeadingZeroPoints(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Version:       types.SchemaV1,
		AssetDecimals: 6,
		SpotPriceUSD:  decimal.NewFromInt(1),
		Series: &datafetcher.HistorySeries{
			APY:            []types.SeriesPoint{pt(100, "0"), pt(200, "0"), pt(300, "0.05")},
			TotalAssetsUSD: []types.SeriesPoint{pt(300, "1000"), pt(400, "1100")},
			TotalAssetsRaw: []types.SeriesPoint{pt(300, "1000000000"), pt(400, "1100000000")},
		},
	}

	points := Aggregate(in)
	require.Len(t, points, 2)
	assert.Equal(t, int64(300), points[0].Timestamp)
}

func TestFilterPeriod(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	day := int64(24 * 60 * 60)
	points := []types.HistoryPoint{
		{Timestamp: now.Unix() - 400*day},
		{Timestamp: now.Unix() - 40*day},
		{Timestamp: now.Unix() - 5*day},
	}

	assert.Len(t, FilterPeriod(points, "all", now), 3)
	assert.Len(t, FilterPeriod(points, "1y", now), 2)
	assert.Len(t, FilterPeriod(points, "30d", now), 1)
	assert.Len(t, FilterPeriod(points, "7d", now), 1)
}

func TestFilterAppliedAfterTrim(t *testing.T) {
	t.Parallel()

	// The leading-zero trim operates on the full picture; the period
	// cutoff is applied afterwards by the caller.
	in := Inputs{
		Version:       types.SchemaV1,
		AssetDecimals: 6,
		SpotPriceUSD:  decimal.NewFromInt(1),
		Series: &datafetcher.HistorySeries{
			APY:            []types.SeriesPoint{pt(100, "0")},
			TotalAssetsUSD: []types.SeriesPoint{pt(200, "1000")},
			TotalAssetsRaw: []types.SeriesPoint{pt(200, "1000000000")},
		},
	}

	points := Aggregate(in)
	require.Len(t, points, 1)

	filtered := FilterPeriod(points, "all", time.Unix(300, 0))
	assert.Len(t, filtered, 1)
}

func TestAggregateEmptySeries(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Aggregate(Inputs{Series: &datafetcher.HistorySeries{}}))
	assert.Empty(t, Aggregate(Inputs{}))
}
