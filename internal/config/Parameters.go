/*

This file contains the fixed policy parameters for vaultbridge.

The reconciliation ratio bounds replicate the thresholds the upstream API
has been tuned against in production: historical endpoints have been
observed to occasionally report total assets already scaled to decimal
units instead of raw smallest units. The bounds are a policy to apply
consistently, not a derived mathematical fact.

*/

package config

import "time"

const (
	// ShareDecimals is the fixed decimal precision of vault shares,
	// regardless of the underlying asset's decimals (ERC-4626 v2 vaults
	// always mint 18-decimal shares).
	ShareDecimals = 18

	// NativeGasReserve is the amount of the native gas asset kept back from
	// a "max" spend so the wallet can still pay for the transaction itself.
	NativeGasReserve = "0.001"

	// Reconciliation heuristic bounds. A decimals-converted value whose
	// ratio to the USD-implied value falls outside
	// [ReconcileConvertedMin, ReconcileConvertedMax], while the unconverted
	// raw value's ratio falls inside [ReconcileRawMin, ReconcileRawMax],
	// means the raw value was already decimal-scaled upstream.
	ReconcileConvertedMin = 0.01
	ReconcileConvertedMax = 100.0
	ReconcileRawMin       = 0.5
	ReconcileRawMax       = 2.0

	// ReceiptPollInterval is the delay between receipt polls for a
	// submitted transaction.
	ReceiptPollInterval = 2 * time.Second
	// ReceiptPollAttempts bounds how long we poll before reporting the
	// transaction as still pending.
	ReceiptPollAttempts = 150

	// FetchTimeout bounds a single upstream API request.
	FetchTimeout = 30 * time.Second
	// FetchMaxRetries bounds upstream API retry attempts.
	FetchMaxRetries = 3
)

// HistoryPeriods maps the supported history period filters to their
// duration. "all" is handled separately (no cutoff).
var HistoryPeriods = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}
