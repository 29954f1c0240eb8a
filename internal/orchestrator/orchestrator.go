/*

TransactionOrchestrator: the explicit state machine that drives a user
transaction flow through approval, execution, and confirmation.

A flow is one user intent. A deposit with insufficient allowance is two
on-chain transactions but one flow: once the approval receipt is observed
the real deposit submits automatically, with no further user input. A
vault-to-vault transfer is a withdraw-then-deposit pair bundled under one
flow, submitted as two sequential transactions.

Exactly one flow may be non-idle per session. A user-rejected signature
resets the flow to preview silently (the user may retry with the same
inputs immediately); every other failure surfaces a classified message.

*/

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/openvaults/vaultbridge/internal/amounts"
	"github.com/openvaults/vaultbridge/internal/logger"
	"github.com/openvaults/vaultbridge/internal/types"
	"github.com/openvaults/vaultbridge/internal/wallet"
)

// Error definitions for zero-tolerance error handling
var (
	ErrFlowActive   = errors.New("a transaction flow is already active")
	ErrNotPreview   = errors.New("flow is not in preview")
	ErrInvalidFlow  = errors.New("flow request is invalid")
	ErrInvalidState = errors.New("orchestrator configuration is invalid")
)

// Submitter abstracts transaction submission and the reads the
// orchestrator needs to plan a flow. Implemented by wallet.Client.
type Submitter interface {
	From() common.Address
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	ConvertToAssets(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error)
	SubmitApprove(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	SubmitDeposit(ctx context.Context, vault common.Address, assets *big.Int, receiver common.Address) (common.Hash, error)
	SubmitWithdraw(ctx context.Context, vault common.Address, assets *big.Int, receiver, owner common.Address) (common.Hash, error)
	SubmitRedeem(ctx context.Context, vault common.Address, shares *big.Int, receiver, owner common.Address) (common.Hash, error)
}

// ReceiptWaiter abstracts the await-terminal-state primitive, independent
// of any render cycle. Implemented by wallet.Waiter.
type ReceiptWaiter interface {
	Await(ctx context.Context, txHash common.Hash) (wallet.ReceiptResult, error)
}

// FlowRecorder persists finished flows for the activity audit log.
type FlowRecorder interface {
	RecordFlow(state types.TransactionState, txHashes []string) error
}

// FlowRequest is the user's input when opening a flow.
type FlowRequest struct {
	Type   types.TransactionType
	From   types.AccountRef
	To     types.AccountRef
	Amount string // human decimal string; ignored when RedeemAll is set
	Asset  types.AssetRef
	// TokenAddress is the underlying ERC-20, needed for the approval leg
	// of deposits and transfers.
	TokenAddress string
	// RedeemAll redeems the source account's full share balance instead
	// of withdrawing an asset amount, so the exit is exact and dust-free.
	RedeemAll bool
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Submitter Submitter
	Waiter    ReceiptWaiter
	Recorder  FlowRecorder              // optional
	OnEvent   func(types.ProgressEvent) // optional
}

// Orchestrator owns the single per-session TransactionState.
type Orchestrator struct {
	log       zerolog.Logger
	submitter Submitter
	waiter    ReceiptWaiter
	recorder  FlowRecorder
	onEvent   func(types.ProgressEvent)

	mu      sync.Mutex
	state   types.TransactionState
	request FlowRequest
	cancel  context.CancelFunc
	hashes  []string
}

// New creates an orchestrator in the idle state.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Submitter == nil {
		return nil, errors.Join(ErrInvalidState, errors.New("submitter cannot be nil"))
	}
	if cfg.Waiter == nil {
		return nil, errors.Join(ErrInvalidState, errors.New("receipt waiter cannot be nil"))
	}

	return &Orchestrator{
		log:       logger.GetForComponent("tx_orchestrator"),
		submitter: cfg.Submitter,
		waiter:    cfg.Waiter,
		recorder:  cfg.Recorder,
		onEvent:   cfg.OnEvent,
		state:     types.TransactionState{Status: types.StatusIdle},
	}, nil
}

// State returns a copy of the current transaction state.
func (o *Orchestrator) State() types.TransactionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Begin validates a flow request and moves idle → preview. Starting a new
// flow while one is active is rejected without mutating the active state.
func (o *Orchestrator) Begin(req FlowRequest) error {
	if err := validateFlowRequest(req); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Status != types.StatusIdle {
		return fmt.Errorf("%w: status is %s", ErrFlowActive, o.state.Status)
	}

	o.request = req
	o.hashes = nil
	o.state = types.TransactionState{
		FlowID:       uuid.NewString(),
		Status:       types.StatusPreview,
		Type:         req.Type,
		From:         req.From,
		To:           req.To,
		Amount:       req.Amount,
		DerivedAsset: req.Asset,
	}

	o.log.Info().
		Str("flowId", o.state.FlowID).
		Str("type", string(req.Type)).
		Str("amount", req.Amount).
		Msg("Transaction flow opened")

	return nil
}

// Confirm executes the previewed flow to its terminal state. It blocks
// through wallet signing and receipt confirmation; run it in its own
// goroutine. A user cancellation returns nil with the flow back in
// preview.
func (o *Orchestrator) Confirm(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Status != types.StatusPreview {
		status := o.state.Status
		o.mu.Unlock()
		return fmt.Errorf("%w: status is %s", ErrNotPreview, status)
	}

	flowCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.state.Status = types.StatusSigning
	request := o.request
	o.mu.Unlock()

	defer cancel()
	return o.runFlow(flowCtx, request)
}

// Reset dismisses a finished flow or abandons an in-flight one. Any
// pending receipt wait is cancelled; the state returns to idle.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Status.InFlight() {
		o.log.Warn().
			Str("flowId", o.state.FlowID).
			Str("status", string(o.state.Status)).
			Msg("Abandoning in-flight transaction flow")
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = types.TransactionState{Status: types.StatusIdle}
	o.request = FlowRequest{}
	o.hashes = nil
	o.log.Debug().Msg("Transaction flow reset to idle")
}

// step is one on-chain transaction within a flow.
type step struct {
	kind   types.StepType
	submit func(ctx context.Context) (common.Hash, error)
}

func (o *Orchestrator) runFlow(ctx context.Context, req FlowRequest) error {
	steps, err := o.planSteps(ctx, req)
	if err != nil {
		return o.failFlow(err.Error())
	}

	o.mu.Lock()
	o.state.TotalSteps = len(steps)
	o.mu.Unlock()

	for i, s := range steps {
		hash, err := s.submit(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Reset abandoned the flow between steps; state is
				// already idle.
				return nil
			}
			return o.failFlow(err.Error())
		}

		o.advanceStep(i, len(steps), s.kind, hash)

		result, err := o.waiter.Await(ctx, hash)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return o.failFlow(err.Error())
		}

		switch result.Outcome {
		case wallet.ReceiptConfirmed:
			// Prerequisite receipts auto-chain into the next step with
			// no further user input.
		case wallet.ReceiptCancelled:
			// The orchestrator itself reset; state is already idle.
			return nil
		case wallet.ReceiptReverted:
			return o.failFlow("execution reverted")
		case wallet.ReceiptPending:
			return o.failFlow("timed out waiting for transaction confirmation")
		}
	}

	return o.succeedFlow()
}

// planSteps resolves amounts and allowances into the ordered on-chain
// transactions this flow needs.
func (o *Orchestrator) planSteps(ctx context.Context, req FlowRequest) ([]step, error) {
	walletAddr := o.submitter.From()

	switch req.Type {
	case types.TxDeposit:
		vaultAddr := common.HexToAddress(req.To.Address)
		tokenAddr := common.HexToAddress(req.TokenAddress)
		raw, err := parseRawAmount(req.Amount, req.Asset.Decimals)
		if err != nil {
			return nil, err
		}

		steps := make([]step, 0, 2)
		needsApproval, err := o.needsApproval(ctx, tokenAddr, walletAddr, vaultAddr, raw)
		if err != nil {
			return nil, err
		}
		if needsApproval {
			steps = append(steps, step{
				kind: types.StepApproving,
				submit: func(ctx context.Context) (common.Hash, error) {
					return o.submitter.SubmitApprove(ctx, tokenAddr, vaultAddr, raw)
				},
			})
		}
		steps = append(steps, step{
			kind: types.StepConfirming,
			submit: func(ctx context.Context) (common.Hash, error) {
				return o.submitter.SubmitDeposit(ctx, vaultAddr, raw, walletAddr)
			},
		})
		return steps, nil

	case types.TxWithdraw:
		return o.planExit(req, common.HexToAddress(req.From.Address), walletAddr)

	case types.TxTransfer:
		sourceVault := common.HexToAddress(req.From.Address)
		targetVault := common.HexToAddress(req.To.Address)
		tokenAddr := common.HexToAddress(req.TokenAddress)

		exitSteps, err := o.planExit(req, sourceVault, walletAddr)
		if err != nil {
			return nil, err
		}

		// The deposit leg needs the exact asset amount the exit will
		// release. convertToAssets gives it dust-free; a cached share
		// price would not.
		depositAmount, err := o.exitAssets(ctx, req, sourceVault)
		if err != nil {
			return nil, err
		}

		steps := exitSteps
		needsApproval, err := o.needsApproval(ctx, tokenAddr, walletAddr, targetVault, depositAmount)
		if err != nil {
			return nil, err
		}
		if needsApproval {
			steps = append(steps, step{
				kind: types.StepApproving,
				submit: func(ctx context.Context) (common.Hash, error) {
					return o.submitter.SubmitApprove(ctx, tokenAddr, targetVault, depositAmount)
				},
			})
		}
		steps = append(steps, step{
			kind: types.StepConfirming,
			submit: func(ctx context.Context) (common.Hash, error) {
				return o.submitter.SubmitDeposit(ctx, targetVault, depositAmount, walletAddr)
			},
		})
		return steps, nil

	default:
		return nil, fmt.Errorf("%w: unknown transaction type %s", ErrInvalidFlow, req.Type)
	}
}

// planExit builds the single exit step of a withdraw or transfer.
func (o *Orchestrator) planExit(req FlowRequest, vaultAddr, walletAddr common.Address) ([]step, error) {
	if req.RedeemAll {
		shares, ok := new(big.Int).SetString(req.From.ShareBalanceRaw, 10)
		if !ok || shares.Sign() <= 0 {
			return nil, fmt.Errorf("%w: invalid share balance %q", ErrInvalidFlow, req.From.ShareBalanceRaw)
		}
		return []step{{
			kind: types.StepConfirming,
			submit: func(ctx context.Context) (common.Hash, error) {
				return o.submitter.SubmitRedeem(ctx, vaultAddr, shares, walletAddr, walletAddr)
			},
		}}, nil
	}

	raw, err := parseRawAmount(req.Amount, req.Asset.Decimals)
	if err != nil {
		return nil, err
	}
	return []step{{
		kind: types.StepConfirming,
		submit: func(ctx context.Context) (common.Hash, error) {
			return o.submitter.SubmitWithdraw(ctx, vaultAddr, raw, walletAddr, walletAddr)
		},
	}}, nil
}

// exitAssets resolves the asset amount a flow's exit leg will release.
func (o *Orchestrator) exitAssets(ctx context.Context, req FlowRequest, sourceVault common.Address) (*big.Int, error) {
	if req.RedeemAll {
		shares, ok := new(big.Int).SetString(req.From.ShareBalanceRaw, 10)
		if !ok || shares.Sign() <= 0 {
			return nil, fmt.Errorf("%w: invalid share balance %q", ErrInvalidFlow, req.From.ShareBalanceRaw)
		}
		return o.submitter.ConvertToAssets(ctx, sourceVault, shares)
	}
	return parseRawAmount(req.Amount, req.Asset.Decimals)
}

func (o *Orchestrator) needsApproval(ctx context.Context, token, owner, spender common.Address, amount *big.Int) (bool, error) {
	allowance, err := o.submitter.Allowance(ctx, token, owner, spender)
	if err != nil {
		return false, err
	}
	return allowance.Cmp(amount) < 0, nil
}

// advanceStep records a submitted step and emits its progress event.
func (o *Orchestrator) advanceStep(index, total int, kind types.StepType, hash common.Hash) {
	o.mu.Lock()
	if kind == types.StepApproving {
		o.state.Status = types.StatusApproving
	} else {
		o.state.Status = types.StatusConfirming
	}
	o.state.CurrentTxHash = hash.Hex()
	o.state.PendingStepIndex = index + 1
	o.hashes = append(o.hashes, hash.Hex())
	event := types.ProgressEvent{
		StepIndex:  index + 1,
		TotalSteps: total,
		Type:       kind,
		TxHash:     hash.Hex(),
	}
	o.mu.Unlock()

	o.log.Info().
		Int("step", event.StepIndex).
		Int("totalSteps", event.TotalSteps).
		Str("type", string(kind)).
		Str("txHash", event.TxHash).
		Msg("Transaction step submitted")

	if o.onEvent != nil {
		o.onEvent(event)
	}
}

// returnToPreview handles a user cancellation: the flow goes back to
// preview silently with any in-flight hash cleared, so the user can retry
// with the same inputs.
func (o *Orchestrator) returnToPreview() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Status = types.StatusPreview
	o.state.CurrentTxHash = ""
	o.state.PendingStepIndex = 0
	o.state.ErrorMessage = ""
	o.log.Info().Str("flowId", o.state.FlowID).Msg("User cancelled signature, returning to preview")
}

// failFlow classifies a raw failure and moves the flow to its outcome. A
// user cancellation is not an error: it returns the flow to preview
// silently no matter which step surfaced it, submit or receipt wait.
func (o *Orchestrator) failFlow(rawMessage string) error {
	category := Classify(rawMessage)
	if category == CategoryCancelled {
		o.returnToPreview()
		return nil
	}
	message := UserMessage(category, rawMessage)

	o.mu.Lock()
	o.state.Status = types.StatusError
	o.state.ErrorMessage = message
	state := o.state
	hashes := append([]string(nil), o.hashes...)
	o.mu.Unlock()

	o.log.Error().
		Str("flowId", state.FlowID).
		Str("category", string(category)).
		Str("message", rawMessage).
		Msg("Transaction flow failed")

	o.record(state, hashes)
	return errors.New(message)
}

func (o *Orchestrator) succeedFlow() error {
	o.mu.Lock()
	o.state.Status = types.StatusSuccess
	state := o.state
	hashes := append([]string(nil), o.hashes...)
	o.mu.Unlock()

	o.log.Info().
		Str("flowId", state.FlowID).
		Int("steps", len(hashes)).
		Msg("Transaction flow completed")

	o.record(state, hashes)
	return nil
}

func (o *Orchestrator) record(state types.TransactionState, hashes []string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordFlow(state, hashes); err != nil {
		o.log.Error().Err(err).Str("flowId", state.FlowID).Msg("Failed to record transaction flow")
	}
}

// validateFlowRequest enforces the preview entry contract: a positive
// amount (or a redeemable balance) and a compatible account pair for the
// declared type. Wallet-to-wallet is never valid; vault-to-vault is only
// valid as a transfer.
func validateFlowRequest(req FlowRequest) error {
	if req.From.Address == "" || req.To.Address == "" {
		return fmt.Errorf("%w: both accounts are required", ErrInvalidFlow)
	}

	switch req.Type {
	case types.TxDeposit:
		if req.From.Kind != types.AccountWallet || req.To.Kind != types.AccountVault {
			return fmt.Errorf("%w: deposit requires wallet → vault", ErrInvalidFlow)
		}
		if req.TokenAddress == "" {
			return fmt.Errorf("%w: deposit requires the asset token address", ErrInvalidFlow)
		}
	case types.TxWithdraw:
		if req.From.Kind != types.AccountVault || req.To.Kind != types.AccountWallet {
			return fmt.Errorf("%w: withdraw requires vault → wallet", ErrInvalidFlow)
		}
	case types.TxTransfer:
		if req.From.Kind != types.AccountVault || req.To.Kind != types.AccountVault {
			return fmt.Errorf("%w: transfer requires vault → vault", ErrInvalidFlow)
		}
		if req.From.Address == req.To.Address {
			return fmt.Errorf("%w: transfer requires two distinct vaults", ErrInvalidFlow)
		}
		if req.TokenAddress == "" {
			return fmt.Errorf("%w: transfer requires the asset token address", ErrInvalidFlow)
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidFlow, req.Type)
	}

	if req.RedeemAll {
		if req.Type == types.TxDeposit {
			return fmt.Errorf("%w: redeem-all only applies to vault exits", ErrInvalidFlow)
		}
		return nil
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fmt.Errorf("%w: amount %q is not a valid decimal", ErrInvalidFlow, req.Amount)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidFlow)
	}
	return nil
}

// parseRawAmount converts a human decimal amount string to raw units.
func parseRawAmount(amount string, decimals int) (*big.Int, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q is not a valid decimal", ErrInvalidFlow, amount)
	}
	rawStr, err := amounts.FromDecimal(value, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
	}
	raw, ok := new(big.Int).SetString(rawStr, 10)
	if !ok || raw.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount %q is below one raw unit", ErrInvalidFlow, amount)
	}
	return raw, nil
}
