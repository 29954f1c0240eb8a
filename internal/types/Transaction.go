/*

Transaction orchestration types. The orchestrator drives exactly one
TransactionState per session through an explicit status machine; a flow is
one user intent (deposit, withdraw, transfer) even when it spans multiple
on-chain transactions (approval before deposit).

*/

package types

// TxStatus is the status of a transaction flow.
type TxStatus string

const (
	StatusIdle       TxStatus = "idle"
	StatusPreview    TxStatus = "preview"
	StatusSigning    TxStatus = "signing"
	StatusApproving  TxStatus = "approving"
	StatusConfirming TxStatus = "confirming"
	StatusSuccess    TxStatus = "success"
	StatusError      TxStatus = "error"
)

// InFlight reports whether the status represents a flow with a pending
// on-chain step.
func (s TxStatus) InFlight() bool {
	switch s {
	case StatusSigning, StatusApproving, StatusConfirming:
		return true
	}
	return false
}

// TransactionType is the user intent behind a flow.
type TransactionType string

const (
	TxDeposit  TransactionType = "deposit"
	TxWithdraw TransactionType = "withdraw"
	// TxTransfer is a vault-to-vault move, modeled as withdraw-then-deposit
	// bundled under one flow.
	TxTransfer TransactionType = "transfer"
)

// AccountKind distinguishes the two endpoint kinds of a flow.
type AccountKind string

const (
	AccountWallet AccountKind = "wallet"
	AccountVault  AccountKind = "vault"
)

// AccountRef is either a wallet reference or a (vault, share balance) pair.
type AccountRef struct {
	Kind    AccountKind `json:"kind"`
	Address string      `json:"address"`
	// ShareBalanceRaw is the raw 18-decimal share balance held in the
	// vault. Only meaningful when Kind == AccountVault.
	ShareBalanceRaw string `json:"share_balance_raw,omitempty"`
}

// AssetRef is the asset a flow moves, as derived from the source account.
type AssetRef struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// StepType labels a progress event with the step being executed.
type StepType string

const (
	StepApproving  StepType = "approving"
	StepConfirming StepType = "confirming"
)

// ProgressEvent is emitted by the orchestrator on every step transition.
type ProgressEvent struct {
	StepIndex  int      `json:"step_index"` // 1-based
	TotalSteps int      `json:"total_steps"`
	Type       StepType `json:"type"`
	TxHash     string   `json:"tx_hash,omitempty"`
}

// TransactionState is the orchestration state machine instance.
// Exactly one non-idle TransactionState may exist per session.
type TransactionState struct {
	FlowID string          `json:"flow_id"`
	Status TxStatus        `json:"status"`
	Type   TransactionType `json:"transaction_type"`

	From AccountRef `json:"from_account"`
	To   AccountRef `json:"to_account"`

	Amount       string   `json:"amount"` // human decimal string
	DerivedAsset AssetRef `json:"derived_asset"`

	CurrentTxHash    string `json:"current_tx_hash,omitempty"`
	PendingStepIndex int    `json:"pending_step_index"`
	TotalSteps       int    `json:"total_steps"`

	// ErrorMessage carries the classified, user-facing message when
	// Status == StatusError.
	ErrorMessage string `json:"error_message,omitempty"`
}
