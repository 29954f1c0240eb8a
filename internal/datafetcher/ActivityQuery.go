/*

User activity queries. The two generations use different transaction type
enums (v1: MetaMorphoDeposit/MetaMorphoWithdraw, v2: Deposit/Withdraw);
both normalize into types.ActivityEntry here so nothing downstream cares.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openvaults/vaultbridge/internal/types"
)

// transactionItem is the shared wire shape of one upstream transaction.
type transactionItem struct {
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	User      struct {
		Address string `json:"address"`
	} `json:"user"`
	Data struct {
		Assets    string          `json:"assets"`
		AssetsUSD decimal.Decimal `json:"assetsUsd"`
	} `json:"data"`
}

const vaultActivityV1Query = `
query VaultActivity($address: String!, $chainId: Int!, $userAddress: String!) {
  transactions(
    where: { vaultAddress_in: [$address], chainId_in: [$chainId], userAddress_in: [$userAddress] }
  ) {
    items {
      hash
      timestamp
      type
      user { address }
      data {
        ... on VaultTransactionData {
          assets
          assetsUsd
        }
      }
    }
  }
}`

const vaultActivityV2Query = `
query VaultV2Activity($address: String!, $chainId: Int!, $userAddress: String!) {
  vaultV2transactions(
    where: { vaultAddress: $address, chainId: $chainId, userAddress: $userAddress }
  ) {
    items {
      hash
      timestamp
      type
      user { address }
      data {
        assets
        assetsUsd
      }
    }
  }
}`

// FetchActivity retrieves a user's transaction history against a vault.
// Unknown transaction types (fee accruals, reallocations) are skipped; a
// vault with no activity yields an empty slice, not an error.
func (c *Client) FetchActivity(ctx context.Context, address string, chainID int64, userAddress string, version types.SchemaVersion) ([]types.ActivityEntry, error) {
	variables := map[string]interface{}{
		"address":     address,
		"chainId":     chainID,
		"userAddress": userAddress,
	}

	query := vaultActivityV1Query
	field := "transactions"
	if version == types.SchemaV2 {
		query = vaultActivityV2Query
		field = "vaultV2transactions"
	} else if version != types.SchemaV1 {
		return nil, fmt.Errorf("unknown schema version: %s", version)
	}

	var out map[string]struct {
		Items []transactionItem `json:"items"`
	}
	if err := c.Query(ctx, query, variables, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []types.ActivityEntry{}, nil
		}
		return nil, err
	}

	items := out[field].Items
	entries := make([]types.ActivityEntry, 0, len(items))
	for _, item := range items {
		txType, ok := normalizeTransactionType(item.Type)
		if !ok {
			fetchLogger.Debug().Str("type", item.Type).Msg("Skipping unsupported transaction type")
			continue
		}
		entries = append(entries, types.ActivityEntry{
			Timestamp:   item.Timestamp,
			Type:        txType,
			UserAddress: item.User.Address,
			AmountRaw:   item.Data.Assets,
			AmountUSD:   item.Data.AssetsUSD,
			TxHash:      item.Hash,
		})
	}
	return entries, nil
}

// normalizeTransactionType maps both generations' type enums onto the
// canonical transaction types.
func normalizeTransactionType(upstream string) (types.TransactionType, bool) {
	switch upstream {
	case "MetaMorphoDeposit", "Deposit":
		return types.TxDeposit, true
	case "MetaMorphoWithdraw", "Withdraw":
		return types.TxWithdraw, true
	case "MetaMorphoTransfer", "Transfer":
		return types.TxTransfer, true
	default:
		return "", false
	}
}
