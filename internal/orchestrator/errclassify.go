/*

Transaction error classification. Wallet providers and RPC nodes report
failures as loosely formatted message strings; the orchestrator needs to
know which ones are the user's own cancellation (silent reset), which are
actionable, and which are generic failures.

Unclassified short messages pass through as-is so provider detail is not
lost; long unrecognized messages collapse to a generic failure rather than
dumping stack-trace noise on the user.

*/

package orchestrator

import "strings"

// ErrorCategory buckets a transaction failure by required handling.
type ErrorCategory string

const (
	CategoryCancelled           ErrorCategory = "cancelled"
	CategoryInsufficientBalance ErrorCategory = "insufficient_balance"
	CategoryReverted            ErrorCategory = "reverted"
	CategoryGasEstimation       ErrorCategory = "gas_estimation"
	CategoryNetwork             ErrorCategory = "network"
	CategoryNotReady            ErrorCategory = "not_ready"
	CategoryUnknown             ErrorCategory = "unknown"
)

// maxPassthroughLength bounds how long an unclassified provider message
// may be before it is replaced with the generic failure message.
const maxPassthroughLength = 120

const genericFailureMessage = "Transaction failed."

// Classify buckets a raw provider/RPC error message.
func Classify(message string) ErrorCategory {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "user rejected"),
		strings.Contains(lower, "user denied"),
		strings.Contains(lower, "rejected the request"),
		strings.Contains(lower, "request rejected"):
		return CategoryCancelled

	case strings.Contains(lower, "insufficient balance"),
		strings.Contains(lower, "insufficient funds"),
		strings.Contains(lower, "exceeds balance"),
		strings.Contains(lower, "transfer amount exceeds"):
		return CategoryInsufficientBalance

	case strings.Contains(lower, "execution reverted"),
		strings.Contains(lower, "transaction reverted"),
		strings.Contains(lower, "revert"):
		return CategoryReverted

	case strings.Contains(lower, "cannot estimate gas"),
		strings.Contains(lower, "gas required exceeds"),
		strings.Contains(lower, "gas estimation"):
		return CategoryGasEstimation

	case strings.Contains(lower, "bundler"),
		strings.Contains(lower, "simulation not ready"),
		strings.Contains(lower, "not ready"):
		return CategoryNotReady

	case strings.Contains(lower, "network"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"):
		return CategoryNetwork
	}

	return CategoryUnknown
}

// UserMessage maps a classified failure to the message surfaced to the
// user. Insufficient-balance messages keep any detailed breakdown already
// present.
func UserMessage(category ErrorCategory, original string) string {
	switch category {
	case CategoryCancelled:
		// Never surfaced: cancellation resets to preview silently.
		return ""
	case CategoryInsufficientBalance:
		if original != "" {
			return original
		}
		return "Insufficient balance for this transaction."
	case CategoryReverted:
		return "Transaction failed. Please try again."
	case CategoryGasEstimation:
		return "Unable to estimate gas for this transaction."
	case CategoryNetwork:
		return "Network error. Check your connection and try again."
	case CategoryNotReady:
		return "Transaction could not be prepared. Please try again shortly."
	default:
		if original != "" && len(original) <= maxPassthroughLength {
			return original
		}
		return genericFailureMessage
	}
}
