// Package blockchain anchors commitment roots on an Ethereum ledger and
// reads back the transactions addressed to a poll.
package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"poll-anchor/models"
)

// Backend is the subset of the JSON-RPC client used by the anchor. It is
// satisfied by *ethclient.Client and by the simulated backend client.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to the node RPC endpoint.
func Dial(ctx context.Context, node string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", models.ErrNetwork, node, err)
	}
	return client, nil
}
