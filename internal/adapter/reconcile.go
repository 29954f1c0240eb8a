/*

Numeric reconciliation between raw on-chain units and externally-reported
USD values.

The upstream historical endpoints have been observed to sometimes report
totalAssets already scaled to decimal units instead of raw smallest units.
When a USD sample for the same instant is available, the USD-implied value
arbitrates: if the decimals-converted reading is orders of magnitude off
while the unconverted reading lands near the USD-implied value, the raw
value was already decimal. Applied consistently everywhere totalAssets is
interpreted, or charts render order-of-magnitude errors.

*/

package adapter

import (
	"github.com/shopspring/decimal"

	"github.com/openvaults/vaultbridge/internal/config"
)

// ReconcileTotalAssets resolves a raw totalAssets reading against a
// concurrently reported USD value and returns the decimal asset amount.
//
// With no usable USD cross-check the decimals-converted value wins (or the
// raw value when the converted one is zero). Otherwise the converted value
// is kept unless its ratio to the USD-implied amount falls outside the
// configured bounds while the unconverted ratio falls inside its own.
func ReconcileTotalAssets(raw decimal.Decimal, totalAssetsUSD, assetPriceUSD decimal.Decimal, decimals int) decimal.Decimal {
	converted := raw.Shift(int32(-decimals))

	if totalAssetsUSD.Sign() <= 0 || assetPriceUSD.Sign() <= 0 {
		if converted.Sign() > 0 {
			return converted
		}
		return raw
	}

	expectedFromUSD := totalAssetsUSD.Div(assetPriceUSD)
	if expectedFromUSD.Sign() <= 0 {
		if converted.Sign() > 0 {
			return converted
		}
		return raw
	}

	convertedRatio := converted.Div(expectedFromUSD)
	rawRatio := raw.Div(expectedFromUSD)

	convertedOutOfRange := convertedRatio.LessThan(decimal.NewFromFloat(config.ReconcileConvertedMin)) ||
		convertedRatio.GreaterThan(decimal.NewFromFloat(config.ReconcileConvertedMax))
	rawInRange := rawRatio.GreaterThanOrEqual(decimal.NewFromFloat(config.ReconcileRawMin)) &&
		rawRatio.LessThanOrEqual(decimal.NewFromFloat(config.ReconcileRawMax))

	if convertedOutOfRange && rawInRange {
		// Upstream already scaled this sample; use it as-is.
		return raw
	}
	return converted
}
