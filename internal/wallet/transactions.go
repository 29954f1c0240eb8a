/*

Contract call builders for the approval and vault entry points. Every
submission validates its inputs before any signing happens; amounts reach
this layer as *big.Int raw units, already converted by the orchestrator.

Withdrawing a full position goes through redeem(shares) rather than
withdraw(assets): convertToAssets at call time gives an exact, non-dust
amount, so the share balance is always preferred over multiplying shares
by a cached share price.

*/

package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/openvaults/vaultbridge/internal/config"
)

var (
	ErrInvalidAmount  = errors.New("transaction amount is invalid")
	ErrInvalidAddress = errors.New("address is invalid")
)

// gasLimit estimates the gas for one contract call and pads it by the
// configured multiplier. When estimation fails the configured default
// limit is used instead; a genuinely reverting call still surfaces at
// receipt time.
func (c *Client) gasLimit(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) uint64 {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		walletLogger.Warn().Err(err).Str("method", method).Msg("Failed to pack call for gas estimation, using default limit")
		return config.DefaultGasLimit
	}

	estimated, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: input})
	if err != nil {
		walletLogger.Warn().Err(err).Str("method", method).Msg("Gas estimation failed, using default limit")
		return config.DefaultGasLimit
	}
	return paddedGasLimit(estimated)
}

// paddedGasLimit applies the configured safety multiplier to a gas
// estimate. Never returns less than the estimate itself.
func paddedGasLimit(estimated uint64) uint64 {
	padded := uint64(float64(estimated) * config.GasLimitMultiplier)
	if padded < estimated {
		return estimated
	}
	return padded
}

// Allowance returns the current ERC-20 allowance owner has granted spender.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if err := validateAddresses(token, owner, spender); err != nil {
		return nil, err
	}

	contract := bind.NewBoundContract(token, erc20ABI, c.eth, c.eth, c.eth)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender); err != nil {
		return nil, errors.Join(ErrCallFailed, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: unexpected allowance output", ErrCallFailed)
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: allowance output is not uint256", ErrCallFailed)
	}
	return allowance, nil
}

// ConvertToAssets asks the vault for the exact asset amount redeemable for
// the given share amount.
func (c *Client) ConvertToAssets(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	if err := validateAmount(shares); err != nil {
		return nil, err
	}

	contract := bind.NewBoundContract(vault, vaultABI, c.eth, c.eth, c.eth)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "convertToAssets", shares); err != nil {
		return nil, errors.Join(ErrCallFailed, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: unexpected convertToAssets output", ErrCallFailed)
	}
	assets, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: convertToAssets output is not uint256", ErrCallFailed)
	}
	return assets, nil
}

// ShareBalance returns the caller's vault share balance.
func (c *Client) ShareBalance(ctx context.Context, vault, owner common.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(vault, vaultABI, c.eth, c.eth, c.eth)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, errors.Join(ErrCallFailed, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: unexpected balanceOf output", ErrCallFailed)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: balanceOf output is not uint256", ErrCallFailed)
	}
	return balance, nil
}

// SubmitApprove submits an ERC-20 approve for the vault to pull amount.
func (c *Client) SubmitApprove(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	if err := validateAddresses(token, spender); err != nil {
		return common.Hash{}, err
	}
	if err := validateAmount(amount); err != nil {
		return common.Hash{}, err
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	opts.GasLimit = c.gasLimit(ctx, token, erc20ABI, "approve", spender, amount)

	contract := bind.NewBoundContract(token, erc20ABI, c.eth, c.eth, c.eth)
	tx, err := contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return common.Hash{}, errors.Join(ErrSubmitFailed, err)
	}

	walletLogger.Info().
		Str("token", token.Hex()).
		Str("spender", spender.Hex()).
		Str("amount", amount.String()).
		Str("txHash", tx.Hash().Hex()).
		Msg("Approval transaction submitted")

	return tx.Hash(), nil
}

// SubmitDeposit submits a vault deposit of the given raw asset amount.
func (c *Client) SubmitDeposit(ctx context.Context, vault common.Address, assets *big.Int, receiver common.Address) (common.Hash, error) {
	if err := validateAddresses(vault, receiver); err != nil {
		return common.Hash{}, err
	}
	if err := validateAmount(assets); err != nil {
		return common.Hash{}, err
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	opts.GasLimit = c.gasLimit(ctx, vault, vaultABI, "deposit", assets, receiver)

	contract := bind.NewBoundContract(vault, vaultABI, c.eth, c.eth, c.eth)
	tx, err := contract.Transact(opts, "deposit", assets, receiver)
	if err != nil {
		return common.Hash{}, errors.Join(ErrSubmitFailed, err)
	}

	walletLogger.Info().
		Str("vault", vault.Hex()).
		Str("assets", assets.String()).
		Str("txHash", tx.Hash().Hex()).
		Msg("Deposit transaction submitted")

	return tx.Hash(), nil
}

// SubmitWithdraw submits a vault withdrawal of an exact raw asset amount.
func (c *Client) SubmitWithdraw(ctx context.Context, vault common.Address, assets *big.Int, receiver, owner common.Address) (common.Hash, error) {
	if err := validateAddresses(vault, receiver, owner); err != nil {
		return common.Hash{}, err
	}
	if err := validateAmount(assets); err != nil {
		return common.Hash{}, err
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	opts.GasLimit = c.gasLimit(ctx, vault, vaultABI, "withdraw", assets, receiver, owner)

	contract := bind.NewBoundContract(vault, vaultABI, c.eth, c.eth, c.eth)
	tx, err := contract.Transact(opts, "withdraw", assets, receiver, owner)
	if err != nil {
		return common.Hash{}, errors.Join(ErrSubmitFailed, err)
	}

	walletLogger.Info().
		Str("vault", vault.Hex()).
		Str("assets", assets.String()).
		Str("txHash", tx.Hash().Hex()).
		Msg("Withdraw transaction submitted")

	return tx.Hash(), nil
}

// SubmitRedeem submits a vault redemption of an exact share amount.
func (c *Client) SubmitRedeem(ctx context.Context, vault common.Address, shares *big.Int, receiver, owner common.Address) (common.Hash, error) {
	if err := validateAddresses(vault, receiver, owner); err != nil {
		return common.Hash{}, err
	}
	if err := validateAmount(shares); err != nil {
		return common.Hash{}, err
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	opts.GasLimit = c.gasLimit(ctx, vault, vaultABI, "redeem", shares, receiver, owner)

	contract := bind.NewBoundContract(vault, vaultABI, c.eth, c.eth, c.eth)
	tx, err := contract.Transact(opts, "redeem", shares, receiver, owner)
	if err != nil {
		return common.Hash{}, errors.Join(ErrSubmitFailed, err)
	}

	walletLogger.Info().
		Str("vault", vault.Hex()).
		Str("shares", shares.String()).
		Str("txHash", tx.Hash().Hex()).
		Msg("Redeem transaction submitted")

	return tx.Hash(), nil
}

func validateAddresses(addrs ...common.Address) error {
	for _, a := range addrs {
		if a == (common.Address{}) {
			return errors.Join(ErrInvalidAddress, errors.New("address cannot be zero"))
		}
	}
	return nil
}

func validateAmount(amount *big.Int) error {
	if amount == nil {
		return errors.Join(ErrInvalidAmount, errors.New("amount is nil"))
	}
	if amount.Sign() <= 0 {
		return errors.Join(ErrInvalidAmount, errors.New("amount must be positive"))
	}
	return nil
}
