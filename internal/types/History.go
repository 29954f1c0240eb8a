package types

import "github.com/shopspring/decimal"

// SeriesPoint is one sample of a sparse upstream time series.
type SeriesPoint struct {
	Timestamp int64           `json:"x"` // unix seconds
	Value     decimal.Decimal `json:"y"`
}

// HistoryPoint is one aligned sample of the merged vault history.
// Timestamps are unique and strictly ascending within a series.
type HistoryPoint struct {
	Timestamp          int64           `json:"timestamp"` // unix seconds
	TotalAssetsUSD     decimal.Decimal `json:"total_assets_usd"`
	TotalAssetsDecimal decimal.Decimal `json:"total_assets"`
	SharePrice         decimal.Decimal `json:"share_price"`
	SharePriceUSD      decimal.Decimal `json:"share_price_usd"`
	APY                decimal.Decimal `json:"apy"`
	NetAPY             decimal.Decimal `json:"net_apy"`
}
