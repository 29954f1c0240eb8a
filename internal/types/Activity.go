package types

import "github.com/shopspring/decimal"

// ActivityEntry is one historical user transaction against a vault, as
// reported by the upstream API (both generations normalize into this).
type ActivityEntry struct {
	Timestamp   int64           `json:"timestamp"` // unix seconds
	Type        TransactionType `json:"type"`
	UserAddress string          `json:"user_address"`
	AmountRaw   string          `json:"amount_raw"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	TxHash      string          `json:"tx_hash"`
}
