package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvaults/vaultbridge/internal/config"
)

func TestPaddedGasLimit(t *testing.T) {
	config.GasLimitMultiplier = 1.2
	assert.Equal(t, uint64(120000), paddedGasLimit(100000))

	// A multiplier below 1 never shrinks the estimate.
	config.GasLimitMultiplier = 0.5
	assert.Equal(t, uint64(100000), paddedGasLimit(100000))

	config.GasLimitMultiplier = 1.0
	assert.Equal(t, uint64(100000), paddedGasLimit(100000))
}

func TestValidateAddresses(t *testing.T) {
	valid := common.HexToAddress("0x1111111111111111111111111111111111111111")

	require.NoError(t, validateAddresses(valid))
	require.NoError(t, validateAddresses(valid, valid))

	err := validateAddresses(valid, common.Address{})
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestValidateAmount(t *testing.T) {
	require.NoError(t, validateAmount(big.NewInt(1)))

	require.ErrorIs(t, validateAmount(nil), ErrInvalidAmount)
	require.ErrorIs(t, validateAmount(big.NewInt(0)), ErrInvalidAmount)
	require.ErrorIs(t, validateAmount(big.NewInt(-5)), ErrInvalidAmount)
}
