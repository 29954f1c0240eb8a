/*

EVM wallet client. Wraps the JSON-RPC connection, validates it against the
configured chain ID, and optionally holds the signing key. Without a key
the client still serves all read calls (allowance, convertToAssets) and
the service runs in read-only mode.

*/

package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/openvaults/vaultbridge/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig       = errors.New("invalid wallet configuration")
	ErrRPCConnectionFailed = errors.New("RPC connection failed")
	ErrChainIDMismatch     = errors.New("node chain ID does not match configuration")
	ErrSignerMissing       = errors.New("no signing key configured")
	ErrCallFailed          = errors.New("contract call failed")
	ErrSubmitFailed        = errors.New("transaction submission failed")
)

var walletLogger = logger.GetForComponent("wallet_client")

// Minimal ABI fragments for the two contract surfaces this system touches:
// the ERC-20 approval path and the ERC-4626 vault entry points.
const erc20ABIJSON = `[
	{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const vaultABIJSON = `[
	{"name":"deposit","type":"function","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}]},
	{"name":"withdraw","type":"function","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}]},
	{"name":"redeem","type":"function","inputs":[{"name":"shares","type":"uint256"},{"name":"receiver","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"assets","type":"uint256"}]},
	{"name":"convertToAssets","type":"function","stateMutability":"view","inputs":[{"name":"shares","type":"uint256"}],"outputs":[{"name":"assets","type":"uint256"}]},
	{"name":"asset","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	erc20ABI = mustParseABI(erc20ABIJSON)
	vaultABI = mustParseABI(vaultABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded ABI: %v", err))
	}
	return parsed
}

// Client wraps the EVM node connection and the optional signing identity.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	auth    *bind.TransactOpts // nil in read-only mode
	from    common.Address
}

// NewClient dials the node, verifies the chain ID, and loads the signing
// key when one is configured. signerKeyHex may be empty for read-only use.
func NewClient(ctx context.Context, rpcURL string, chainID int64, signerKeyHex string) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("RPC URL cannot be empty"))
	}
	if chainID <= 0 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("chain ID must be positive"))
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Join(ErrRPCConnectionFailed, err)
	}

	nodeChainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, errors.Join(ErrRPCConnectionFailed, err)
	}
	if nodeChainID.Int64() != chainID {
		eth.Close()
		return nil, fmt.Errorf("%w: node reports %d, configured %d", ErrChainIDMismatch, nodeChainID.Int64(), chainID)
	}

	client := &Client{
		eth:     eth,
		chainID: nodeChainID,
	}

	if signerKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(signerKeyHex, "0x"))
		if err != nil {
			eth.Close()
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("invalid signing key: %w", err))
		}
		auth, err := bind.NewKeyedTransactorWithChainID(key, nodeChainID)
		if err != nil {
			eth.Close()
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		client.auth = auth
		client.from = auth.From
	}

	walletLogger.Info().
		Int64("chainId", chainID).
		Bool("canSign", client.auth != nil).
		Str("from", client.from.Hex()).
		Msg("Wallet client initialized")

	return client, nil
}

// CanSign reports whether a signing key is configured.
func (c *Client) CanSign() bool {
	return c.auth != nil
}

// From returns the signing address. Zero address in read-only mode.
func (c *Client) From() common.Address {
	return c.from
}

// Eth exposes the underlying node client for the receipt waiter.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// Close releases the node connection.
func (c *Client) Close() {
	walletLogger.Info().Msg("Closing wallet client connection...")
	c.eth.Close()
}

// transactOpts clones the signing options bound to ctx. The per-call gas
// limit is filled in by the submit paths via gasLimit.
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.auth == nil {
		return nil, ErrSignerMissing
	}
	opts := *c.auth
	opts.Context = ctx
	return &opts, nil
}
