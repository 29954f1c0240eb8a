package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvaults/vaultbridge/internal/types"
	"github.com/openvaults/vaultbridge/internal/wallet"
)

const (
	testWallet = "0x1111111111111111111111111111111111111111"
	testVaultA = "0x2222222222222222222222222222222222222222"
	testVaultB = "0x3333333333333333333333333333333333333333"
	testToken  = "0x4444444444444444444444444444444444444444"
)

// stubSubmitter records submissions and returns deterministic hashes.
type stubSubmitter struct {
	allowance     *big.Int
	convertAssets *big.Int
	submitErr     error

	calls    []string
	amounts  []*big.Int
	hashSeed byte
}

func (s *stubSubmitter) From() common.Address {
	return common.HexToAddress(testWallet)
}

func (s *stubSubmitter) Allowance(_ context.Context, _, _, _ common.Address) (*big.Int, error) {
	return s.allowance, nil
}

func (s *stubSubmitter) ConvertToAssets(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return s.convertAssets, nil
}

func (s *stubSubmitter) nextHash() common.Hash {
	s.hashSeed++
	return common.Hash{s.hashSeed}
}

func (s *stubSubmitter) submit(ctx context.Context, call string, amount *big.Int) (common.Hash, error) {
	if ctx.Err() != nil {
		return common.Hash{}, ctx.Err()
	}
	if s.submitErr != nil {
		return common.Hash{}, s.submitErr
	}
	s.calls = append(s.calls, call)
	s.amounts = append(s.amounts, amount)
	return s.nextHash(), nil
}

func (s *stubSubmitter) SubmitApprove(ctx context.Context, _, _ common.Address, amount *big.Int) (common.Hash, error) {
	return s.submit(ctx, "approve", amount)
}

func (s *stubSubmitter) SubmitDeposit(ctx context.Context, _ common.Address, assets *big.Int, _ common.Address) (common.Hash, error) {
	return s.submit(ctx, "deposit", assets)
}

func (s *stubSubmitter) SubmitWithdraw(ctx context.Context, _ common.Address, assets *big.Int, _, _ common.Address) (common.Hash, error) {
	return s.submit(ctx, "withdraw", assets)
}

func (s *stubSubmitter) SubmitRedeem(ctx context.Context, _ common.Address, shares *big.Int, _, _ common.Address) (common.Hash, error) {
	return s.submit(ctx, "redeem", shares)
}

// stubWaiter resolves every awaited transaction to a fixed outcome, or a
// fixed error. onAwait runs before resolving, for interleaving tests.
type stubWaiter struct {
	outcome wallet.ReceiptOutcome
	err     error
	onAwait func()
	awaited []common.Hash
}

func (w *stubWaiter) Await(_ context.Context, txHash common.Hash) (wallet.ReceiptResult, error) {
	w.awaited = append(w.awaited, txHash)
	if w.onAwait != nil {
		w.onAwait()
	}
	if w.err != nil {
		return wallet.ReceiptResult{}, w.err
	}
	return wallet.ReceiptResult{Outcome: w.outcome, TxHash: txHash}, nil
}

func newTestOrchestrator(t *testing.T, submitter *stubSubmitter, waiter *stubWaiter, onEvent func(types.ProgressEvent)) *Orchestrator {
	t.Helper()
	o, err := New(Config{Submitter: submitter, Waiter: waiter, OnEvent: onEvent})
	require.NoError(t, err)
	return o
}

func depositRequest(amount string) FlowRequest {
	return FlowRequest{
		Type:         types.TxDeposit,
		From:         types.AccountRef{Kind: types.AccountWallet, Address: testWallet},
		To:           types.AccountRef{Kind: types.AccountVault, Address: testVaultA},
		Amount:       amount,
		Asset:        types.AssetRef{Symbol: "USDC", Decimals: 6},
		TokenAddress: testToken,
	}
}

func TestBeginValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*FlowRequest)
		wantErr error
	}{
		{
			name:    "valid deposit",
			mutate:  func(r *FlowRequest) {},
			wantErr: nil,
		},
		{
			name: "deposit from vault rejected",
			mutate: func(r *FlowRequest) {
				r.From = types.AccountRef{Kind: types.AccountVault, Address: testVaultB}
			},
			wantErr: ErrInvalidFlow,
		},
		{
			name: "wallet to wallet rejected",
			mutate: func(r *FlowRequest) {
				r.To = types.AccountRef{Kind: types.AccountWallet, Address: testWallet}
			},
			wantErr: ErrInvalidFlow,
		},
		{
			name: "transfer to same vault rejected",
			mutate: func(r *FlowRequest) {
				r.Type = types.TxTransfer
				r.From = types.AccountRef{Kind: types.AccountVault, Address: testVaultA}
				r.To = types.AccountRef{Kind: types.AccountVault, Address: testVaultA}
			},
			wantErr: ErrInvalidFlow,
		},
		{
			name:    "zero amount rejected",
			mutate:  func(r *FlowRequest) { r.Amount = "0" },
			wantErr: ErrInvalidFlow,
		},
		{
			name:    "negative amount rejected",
			mutate:  func(r *FlowRequest) { r.Amount = "-5" },
			wantErr: ErrInvalidFlow,
		},
		{
			name:    "non-numeric amount rejected",
			mutate:  func(r *FlowRequest) { r.Amount = "12..5" },
			wantErr: ErrInvalidFlow,
		},
		{
			name:    "deposit without token address rejected",
			mutate:  func(r *FlowRequest) { r.TokenAddress = "" },
			wantErr: ErrInvalidFlow,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOrchestrator(t, &stubSubmitter{}, &stubWaiter{}, nil)
			req := depositRequest("100")
			tc.mutate(&req)

			err := o.Begin(req)
			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, types.StatusPreview, o.State().Status)
				assert.NotEmpty(t, o.State().FlowID)
			} else {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, types.StatusIdle, o.State().Status)
			}
		})
	}
}

func TestDepositWithApprovalAutoChains(t *testing.T) {
	submitter := &stubSubmitter{allowance: big.NewInt(0)}
	waiter := &stubWaiter{outcome: wallet.ReceiptConfirmed}
	var events []types.ProgressEvent
	var o *Orchestrator
	o = newTestOrchestrator(t, submitter, waiter, func(e types.ProgressEvent) {
		events = append(events, e)
		assert.True(t, o.State().Status.InFlight())
	})

	require.NoError(t, o.Begin(depositRequest("100")))
	require.NoError(t, o.Confirm(context.Background()))

	assert.Equal(t, []string{"approve", "deposit"}, submitter.calls)
	assert.Len(t, waiter.awaited, 2)

	require.Len(t, events, 2)
	assert.Equal(t, types.ProgressEvent{StepIndex: 1, TotalSteps: 2, Type: types.StepApproving, TxHash: events[0].TxHash}, events[0])
	assert.Equal(t, types.ProgressEvent{StepIndex: 2, TotalSteps: 2, Type: types.StepConfirming, TxHash: events[1].TxHash}, events[1])

	state := o.State()
	assert.Equal(t, types.StatusSuccess, state.Status)
	assert.Equal(t, 2, state.TotalSteps)

	// 100 USDC at 6 decimals
	assert.Equal(t, "100000000", submitter.amounts[0].String())
	assert.Equal(t, "100000000", submitter.amounts[1].String())
}

func TestDepositWithSufficientAllowanceSkipsApproval(t *testing.T) {
	submitter := &stubSubmitter{allowance: big.NewInt(200_000_000)}
	waiter := &stubWaiter{outcome: wallet.ReceiptConfirmed}
	var events []types.ProgressEvent
	o := newTestOrchestrator(t, submitter, waiter, func(e types.ProgressEvent) {
		events = append(events, e)
	})

	require.NoError(t, o.Begin(depositRequest("100")))
	require.NoError(t, o.Confirm(context.Background()))

	assert.Equal(t, []string{"deposit"}, submitter.calls)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].StepIndex)
	assert.Equal(t, 1, events[0].TotalSteps)
	assert.Equal(t, types.StepConfirming, events[0].Type)
	assert.Equal(t, types.StatusSuccess, o.State().Status)
}

func TestUserRejectionReturnsToPreviewSilently(t *testing.T) {
	submitter := &stubSubmitter{
		allowance: big.NewInt(0),
		submitErr: errors.New("MetaMask Tx Signature: User denied transaction signature"),
	}
	o := newTestOrchestrator(t, submitter, &stubWaiter{outcome: wallet.ReceiptConfirmed}, nil)

	require.NoError(t, o.Begin(depositRequest("100")))
	flowID := o.State().FlowID

	require.NoError(t, o.Confirm(context.Background()))

	state := o.State()
	assert.Equal(t, types.StatusPreview, state.Status)
	assert.Empty(t, state.CurrentTxHash)
	assert.Empty(t, state.ErrorMessage)
	assert.Equal(t, flowID, state.FlowID)

	// The flow is retryable with the same inputs.
	submitter.submitErr = nil
	require.NoError(t, o.Confirm(context.Background()))
	assert.Equal(t, types.StatusSuccess, o.State().Status)
}

func TestReceiptWaitUserRejectionReturnsToPreview(t *testing.T) {
	// A rejection can surface from the wait, not just the submit, when the
	// wallet provider reports it asynchronously.
	submitter := &stubSubmitter{allowance: big.NewInt(0)}
	waiter := &stubWaiter{err: errors.New("user rejected the request")}
	o := newTestOrchestrator(t, submitter, waiter, nil)

	require.NoError(t, o.Begin(depositRequest("100")))
	require.NoError(t, o.Confirm(context.Background()))

	state := o.State()
	assert.Equal(t, types.StatusPreview, state.Status)
	assert.Empty(t, state.CurrentTxHash)
	assert.Empty(t, state.ErrorMessage)

	// Retryable with the same inputs.
	waiter.err = nil
	waiter.outcome = wallet.ReceiptConfirmed
	require.NoError(t, o.Confirm(context.Background()))
	assert.Equal(t, types.StatusSuccess, o.State().Status)
}

func TestResetBetweenStepsLeavesIdle(t *testing.T) {
	// Reset landing between an approval receipt and the deposit submit
	// must not resurrect the flow as an error state.
	submitter := &stubSubmitter{allowance: big.NewInt(0)}
	waiter := &stubWaiter{outcome: wallet.ReceiptConfirmed}
	o := newTestOrchestrator(t, submitter, waiter, nil)
	waiter.onAwait = func() { o.Reset() }

	require.NoError(t, o.Begin(depositRequest("100")))
	require.NoError(t, o.Confirm(context.Background()))

	assert.Equal(t, types.StatusIdle, o.State().Status)
	assert.Equal(t, []string{"approve"}, submitter.calls)
}

func TestConcurrentFlowRejectedWithoutMutation(t *testing.T) {
	o := newTestOrchestrator(t, &stubSubmitter{}, &stubWaiter{outcome: wallet.ReceiptConfirmed}, nil)

	require.NoError(t, o.Begin(depositRequest("100")))
	active := o.State()

	err := o.Begin(depositRequest("50"))
	require.ErrorIs(t, err, ErrFlowActive)
	assert.Equal(t, active, o.State())
}

func TestTransferRedeemsThenDepositsExactAssets(t *testing.T) {
	submitter := &stubSubmitter{
		allowance:     big.NewInt(1_000_000_000),
		convertAssets: big.NewInt(123_456_789),
	}
	waiter := &stubWaiter{outcome: wallet.ReceiptConfirmed}
	var events []types.ProgressEvent
	o := newTestOrchestrator(t, submitter, waiter, func(e types.ProgressEvent) {
		events = append(events, e)
	})

	req := FlowRequest{
		Type: types.TxTransfer,
		From: types.AccountRef{
			Kind:            types.AccountVault,
			Address:         testVaultA,
			ShareBalanceRaw: "5000000000000000000",
		},
		To:           types.AccountRef{Kind: types.AccountVault, Address: testVaultB},
		Asset:        types.AssetRef{Symbol: "USDC", Decimals: 6},
		TokenAddress: testToken,
		RedeemAll:    true,
	}
	require.NoError(t, o.Begin(req))
	require.NoError(t, o.Confirm(context.Background()))

	assert.Equal(t, []string{"redeem", "deposit"}, submitter.calls)
	assert.Equal(t, "5000000000000000000", submitter.amounts[0].String())
	// The deposit leg uses the convertToAssets result, not a cached price.
	assert.Equal(t, "123456789", submitter.amounts[1].String())

	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].TotalSteps)
	assert.Equal(t, types.StatusSuccess, o.State().Status)
}

func TestRevertedReceiptFailsFlow(t *testing.T) {
	submitter := &stubSubmitter{allowance: big.NewInt(1_000_000_000)}
	waiter := &stubWaiter{outcome: wallet.ReceiptReverted}
	o := newTestOrchestrator(t, submitter, waiter, nil)

	require.NoError(t, o.Begin(depositRequest("100")))
	err := o.Confirm(context.Background())
	require.Error(t, err)

	state := o.State()
	assert.Equal(t, types.StatusError, state.Status)
	assert.Equal(t, "Transaction failed. Please try again.", state.ErrorMessage)
}

func TestResetReturnsToIdle(t *testing.T) {
	o := newTestOrchestrator(t, &stubSubmitter{}, &stubWaiter{outcome: wallet.ReceiptConfirmed}, nil)

	require.NoError(t, o.Begin(depositRequest("100")))
	o.Reset()

	state := o.State()
	assert.Equal(t, types.StatusIdle, state.Status)
	assert.Empty(t, state.FlowID)

	// A fresh flow can open after reset.
	require.NoError(t, o.Begin(depositRequest("25")))
	assert.Equal(t, types.StatusPreview, o.State().Status)
}

func TestConfirmRequiresPreview(t *testing.T) {
	o := newTestOrchestrator(t, &stubSubmitter{}, &stubWaiter{outcome: wallet.ReceiptConfirmed}, nil)
	err := o.Confirm(context.Background())
	require.ErrorIs(t, err, ErrNotPreview)
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		message string
		want    ErrorCategory
	}{
		{"MetaMask Tx Signature: User denied transaction signature", CategoryCancelled},
		{"user rejected the request", CategoryCancelled},
		{"insufficient funds for gas * price + value", CategoryInsufficientBalance},
		{"execution reverted: ERC4626: deposit more than max", CategoryReverted},
		{"cannot estimate gas; transaction may fail", CategoryGasEstimation},
		{"bundler simulation not ready", CategoryNotReady},
		{"dial tcp: connection refused", CategoryNetwork},
		{"something unexpected", CategoryUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.message, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.message))
		})
	}
}

func TestUserMessageBoundsUnknownPassthrough(t *testing.T) {
	short := "odd provider hiccup"
	assert.Equal(t, short, UserMessage(CategoryUnknown, short))

	long := fmt.Sprintf("%0*d", maxPassthroughLength+1, 0)
	assert.Equal(t, genericFailureMessage, UserMessage(CategoryUnknown, long))

	assert.Empty(t, UserMessage(CategoryCancelled, "user rejected"))
}
