package blockchain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"poll-anchor/blockchain"
	"poll-anchor/models"
)

type fakeBackend struct {
	estimateErr error
	sendErr     error
	sent        []*types.Transaction
	calls       []ethereum.CallMsg
	receipt     *types.Receipt
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) { return 42, nil }

func (f *fakeBackend) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	f.calls = append(f.calls, call)
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 21512, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1337), nil }

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

var root = crypto.Keccak256([]byte("root"))

func newKey(t *testing.T) (common.Address, *blockchain.Anchor, *fakeBackend) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	backend := &fakeBackend{}
	return addr, blockchain.NewAnchor(backend, addr, blockchain.WithLogger(zerolog.Nop())), backend
}

func TestAnchorStateOrdering(t *testing.T) {
	ctx := context.Background()
	_, anchor, _ := newKey(t)

	_, err := anchor.Broadcast(ctx)
	require.ErrorIs(t, err, blockchain.ErrInvalidState)
	_, err = anchor.BuildTransaction(ctx, root)
	require.ErrorIs(t, err, blockchain.ErrInvalidState)
	_, err = anchor.Confirm(ctx)
	require.ErrorIs(t, err, blockchain.ErrInvalidState)

	_, err = anchor.EstimateGas(ctx, root)
	require.NoError(t, err)
	require.Equal(t, blockchain.GasEstimated, anchor.State())

	_, err = anchor.EstimateGas(ctx, root)
	require.ErrorIs(t, err, blockchain.ErrInvalidState)
}

func TestAnchorRun(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	backend := &fakeBackend{}
	anchor := blockchain.NewAnchor(backend, addr, blockchain.WithLogger(zerolog.Nop()))

	result, err := anchor.Run(ctx, root, key)
	require.NoError(t, err)
	require.Equal(t, blockchain.Broadcast, anchor.State())
	require.Equal(t, uint64(42), result.BlockNumber)
	require.Equal(t, uint64(21512), result.Gas)
	require.Equal(t, addr, result.To)

	require.Len(t, backend.calls, 1)
	require.Equal(t, root, backend.calls[0].Data)
	require.Equal(t, addr, *backend.calls[0].To)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	require.Equal(t, result.TxHash, tx.Hash())
	require.Equal(t, root, tx.Data())
	require.Equal(t, addr, *tx.To())
	require.Zero(t, tx.Value().Sign())
	require.Equal(t, uint64(7), tx.Nonce())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	require.NoError(t, err)
	require.Equal(t, addr, sender)

	_, err = anchor.Confirm(ctx)
	require.ErrorIs(t, err, blockchain.ErrPending)
	require.Equal(t, blockchain.Broadcast, anchor.State())

	backend.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(43)}
	_, err = anchor.Confirm(ctx)
	require.NoError(t, err)
	require.Equal(t, blockchain.Confirmed, anchor.State())
}

func TestAnchorFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("estimate", func(t *testing.T) {
		key, _ := crypto.GenerateKey()
		backend := &fakeBackend{estimateErr: errors.New("connection refused")}
		anchor := blockchain.NewAnchor(backend, crypto.PubkeyToAddress(key.PublicKey), blockchain.WithLogger(zerolog.Nop()))
		_, err := anchor.Run(ctx, root, key)
		require.ErrorIs(t, err, models.ErrNetwork)
		require.Equal(t, blockchain.Failed, anchor.State())
	})

	t.Run("broadcast", func(t *testing.T) {
		key, _ := crypto.GenerateKey()
		backend := &fakeBackend{sendErr: errors.New("nonce too low")}
		anchor := blockchain.NewAnchor(backend, crypto.PubkeyToAddress(key.PublicKey), blockchain.WithLogger(zerolog.Nop()))
		_, err := anchor.Run(ctx, root, key)
		require.ErrorIs(t, err, models.ErrNetwork)
		require.Equal(t, blockchain.Failed, anchor.State())
	})

	t.Run("missing key", func(t *testing.T) {
		_, anchor, backend := newKey(t)
		_, err := anchor.Run(ctx, root, nil)
		require.ErrorIs(t, err, models.ErrCrypto)
		require.Equal(t, blockchain.Failed, anchor.State())
		require.Empty(t, backend.sent)
	})

	t.Run("foreign key", func(t *testing.T) {
		other, _ := crypto.GenerateKey()
		_, anchor, backend := newKey(t)
		_, err := anchor.Run(ctx, root, other)
		require.ErrorIs(t, err, models.ErrCrypto)
		require.Empty(t, backend.sent)
	})

	t.Run("reverted", func(t *testing.T) {
		key, _ := crypto.GenerateKey()
		backend := &fakeBackend{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(1)}}
		anchor := blockchain.NewAnchor(backend, crypto.PubkeyToAddress(key.PublicKey), blockchain.WithLogger(zerolog.Nop()))
		_, err := anchor.Run(ctx, root, key)
		require.NoError(t, err)
		_, err = anchor.Confirm(ctx)
		require.ErrorIs(t, err, models.ErrNetwork)
		require.Equal(t, blockchain.Failed, anchor.State())
	})
}

func TestAnchorOnSimulatedChain(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sim := simulated.NewBackend(types.GenesisAlloc{
		addr: {Balance: big.NewInt(1_000_000_000_000_000_000)},
	})
	defer sim.Close()
	client := sim.Client()

	anchor := blockchain.NewAnchor(client, addr, blockchain.WithLogger(zerolog.Nop()))
	result, err := anchor.Run(ctx, root, key)
	require.NoError(t, err)

	sim.Commit()

	receipt, err := anchor.Confirm(ctx)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	require.Equal(t, blockchain.Confirmed, anchor.State())

	tx, pending, err := client.TransactionByHash(ctx, result.TxHash)
	require.NoError(t, err)
	require.False(t, pending)
	require.Equal(t, root, tx.Data())
	require.Equal(t, addr, *tx.To())
}
