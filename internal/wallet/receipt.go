/*

ReceiptWaiter: awaits the terminal state of a submitted transaction.

Polling is bounded; a transaction still unmined after the attempt budget
reports pending rather than failing, and a cancelled context resolves to a
cancelled terminal state without error so the orchestrator can abandon a
wait when it resets.

*/

package wallet

import (
	"context"
	"errors"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/openvaults/vaultbridge/internal/config"
	"github.com/openvaults/vaultbridge/internal/logger"
)

var receiptLogger = logger.GetForComponent("receipt_waiter")

// ReceiptOutcome is the terminal (or still-pending) state of a wait.
type ReceiptOutcome string

const (
	ReceiptConfirmed ReceiptOutcome = "confirmed"
	ReceiptReverted  ReceiptOutcome = "reverted"
	ReceiptPending   ReceiptOutcome = "pending"
	ReceiptCancelled ReceiptOutcome = "cancelled"
)

// ReceiptResult carries the outcome of an awaited transaction.
type ReceiptResult struct {
	Outcome     ReceiptOutcome
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Waiter polls the node for transaction receipts.
type Waiter struct {
	eth *ethclient.Client
}

// NewWaiter creates a receipt waiter over an existing node connection.
func NewWaiter(eth *ethclient.Client) *Waiter {
	return &Waiter{eth: eth}
}

// Await blocks until the transaction reaches a terminal state, the poll
// budget runs out (pending), or ctx is cancelled (cancelled, no error).
func (w *Waiter) Await(ctx context.Context, txHash common.Hash) (ReceiptResult, error) {
	var receipt *coretypes.Receipt

	err := retry.Do(
		func() error {
			r, err := w.eth.TransactionReceipt(ctx, txHash)
			if err != nil {
				return err
			}
			receipt = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(config.ReceiptPollAttempts),
		retry.Delay(config.ReceiptPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool {
			// Not mined yet; anything else is a real RPC failure.
			return errors.Is(err, ethereum.NotFound)
		}),
		retry.LastErrorOnly(true),
	)

	if ctx.Err() != nil {
		receiptLogger.Debug().Str("txHash", txHash.Hex()).Msg("Receipt wait abandoned")
		return ReceiptResult{Outcome: ReceiptCancelled, TxHash: txHash}, nil
	}
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			receiptLogger.Warn().Str("txHash", txHash.Hex()).Msg("Transaction still pending after poll budget")
			return ReceiptResult{Outcome: ReceiptPending, TxHash: txHash}, nil
		}
		return ReceiptResult{}, errors.Join(ErrCallFailed, err)
	}

	result := ReceiptResult{
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	if receipt.Status == coretypes.ReceiptStatusSuccessful {
		result.Outcome = ReceiptConfirmed
	} else {
		result.Outcome = ReceiptReverted
	}

	receiptLogger.Info().
		Str("txHash", txHash.Hex()).
		Str("outcome", string(result.Outcome)).
		Uint64("block", result.BlockNumber).
		Msg("Transaction reached terminal state")

	return result, nil
}
