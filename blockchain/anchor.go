package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"poll-anchor/encryption"
	"poll-anchor/models"
)

type State int

const (
	Idle State = iota
	GasEstimated
	Signed
	Broadcast
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case GasEstimated:
		return "gas-estimated"
	case Signed:
		return "signed"
	case Broadcast:
		return "broadcast"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidState = errors.New("anchor: operation not allowed in current state")
	// ErrPending means the transaction has not been mined yet.
	ErrPending = errors.New("anchor: transaction pending")
)

// Anchor publishes one commitment root as the data of a transaction sent
// from the poll address. An Anchor is used for a single transaction; every
// step must be called in order and any failure moves it to Failed.
type Anchor struct {
	backend Backend
	from    common.Address
	logger  zerolog.Logger

	mutex       sync.Mutex
	state       State
	root        []byte
	blockNumber uint64
	gas         uint64
	chainID     *big.Int
	tx          *types.Transaction
	signed      *types.Transaction
}

type AnchorOption func(*Anchor)

func WithLogger(logger zerolog.Logger) AnchorOption {
	return func(a *Anchor) {
		a.logger = logger
	}
}

// TxOption customizes the unsigned transaction.
type TxOption func(*txParams)

type txParams struct {
	to    common.Address
	value *big.Int
}

// WithDestination overrides the recipient, which defaults to the poll address.
func WithDestination(to common.Address) TxOption {
	return func(p *txParams) {
		p.to = to
	}
}

func WithValue(value *big.Int) TxOption {
	return func(p *txParams) {
		p.value = value
	}
}

func NewAnchor(backend Backend, from common.Address, opts ...AnchorOption) *Anchor {
	a := &Anchor{
		backend: backend,
		from:    from,
		logger:  zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Anchor) State() State {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.state
}

func (a *Anchor) expect(want State, op string) error {
	if a.state != want {
		return fmt.Errorf("%w: %s requires %s, anchor is %s", ErrInvalidState, op, want, a.state)
	}
	return nil
}

func (a *Anchor) fail(kind error, format string, args ...interface{}) error {
	a.state = Failed
	err := fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
	a.logger.Error().Err(err).Msg("anchor failed")
	return err
}

// EstimateGas reads the latest block and estimates the cost of sending root
// to the poll address.
func (a *Anchor) EstimateGas(ctx context.Context, root []byte) (uint64, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := a.expect(Idle, "estimate gas"); err != nil {
		return 0, err
	}
	if len(root) == 0 {
		return 0, a.fail(models.ErrConfig, "empty commitment root")
	}

	blockNumber, err := a.backend.BlockNumber(ctx)
	if err != nil {
		return 0, a.fail(models.ErrNetwork, "failed to get latest block number: %v", err)
	}

	to := a.from
	gas, err := a.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: a.from,
		To:   &to,
		Data: root,
	})
	if err != nil {
		return 0, a.fail(models.ErrNetwork, "failed to estimate gas: %v", err)
	}

	a.root = append([]byte(nil), root...)
	a.blockNumber = blockNumber
	a.gas = gas
	a.state = GasEstimated

	a.logger.Debug().Uint64("block", blockNumber).Uint64("gas", gas).Msg("estimated gas")
	return gas, nil
}

// BuildTransaction assembles the unsigned legacy transaction carrying root.
// Nonce, gas price and chain id are read from the node.
func (a *Anchor) BuildTransaction(ctx context.Context, root []byte, opts ...TxOption) (*types.Transaction, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := a.expect(GasEstimated, "build transaction"); err != nil {
		return nil, err
	}

	params := txParams{to: a.from, value: new(big.Int)}
	for _, opt := range opts {
		opt(&params)
	}

	nonce, err := a.backend.PendingNonceAt(ctx, a.from)
	if err != nil {
		return nil, a.fail(models.ErrNetwork, "failed to get nonce: %v", err)
	}
	gasPrice, err := a.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, a.fail(models.ErrNetwork, "failed to get gas price: %v", err)
	}
	chainID, err := a.backend.ChainID(ctx)
	if err != nil {
		return nil, a.fail(models.ErrNetwork, "failed to get chain id: %v", err)
	}

	to := params.to
	a.tx = types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    params.value,
		Gas:      a.gas,
		GasPrice: gasPrice,
		Data:     append([]byte(nil), root...),
	})
	a.chainID = chainID
	return a.tx, nil
}

// Sign signs the built transaction. The key must belong to the poll address.
func (a *Anchor) Sign(key *ecdsa.PrivateKey) (*types.Transaction, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := a.expect(GasEstimated, "sign"); err != nil {
		return nil, err
	}
	if a.tx == nil {
		return nil, fmt.Errorf("%w: sign requires a built transaction", ErrInvalidState)
	}
	if key == nil {
		return nil, a.fail(models.ErrCrypto, "missing private key")
	}
	if addr := crypto.PubkeyToAddress(key.PublicKey); addr != a.from {
		return nil, a.fail(models.ErrCrypto, "key address %s does not match poll address %s", addr.Hex(), a.from.Hex())
	}

	signed, err := encryption.SignTx(a.tx, a.chainID, key)
	if err != nil {
		a.state = Failed
		return nil, err
	}
	a.signed = signed
	a.state = Signed
	return signed, nil
}

// Broadcast submits the signed transaction and returns its hash. Nothing is
// retried.
func (a *Anchor) Broadcast(ctx context.Context) (common.Hash, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := a.expect(Signed, "broadcast"); err != nil {
		return common.Hash{}, err
	}
	if err := a.backend.SendTransaction(ctx, a.signed); err != nil {
		return common.Hash{}, a.fail(models.ErrNetwork, "failed to send transaction: %v", err)
	}
	a.state = Broadcast

	hash := a.signed.Hash()
	a.logger.Info().Str("tx", hash.Hex()).Str("root", hexutil.Encode(a.root)).Msg("commitment broadcast")
	return hash, nil
}

// Confirm looks the receipt up once. A transaction that is not mined yet
// leaves the anchor in Broadcast and returns ErrPending.
func (a *Anchor) Confirm(ctx context.Context) (*types.Receipt, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := a.expect(Broadcast, "confirm"); err != nil {
		return nil, err
	}
	receipt, err := a.backend.TransactionReceipt(ctx, a.signed.Hash())
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrPending
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get receipt: %v", models.ErrNetwork, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		a.state = Failed
		return receipt, fmt.Errorf("%w: transaction %s reverted", models.ErrNetwork, a.signed.Hash().Hex())
	}
	a.state = Confirmed
	a.logger.Info().Str("tx", a.signed.Hash().Hex()).Uint64("block", receipt.BlockNumber.Uint64()).Msg("commitment confirmed")
	return receipt, nil
}

// AnchorResult describes a broadcast commitment.
type AnchorResult struct {
	TxHash      common.Hash
	BlockNumber uint64
	Gas         uint64
	From        common.Address
	To          common.Address
}

// Run drives the anchor from Idle to Broadcast.
func (a *Anchor) Run(ctx context.Context, root []byte, key *ecdsa.PrivateKey, opts ...TxOption) (*AnchorResult, error) {
	gas, err := a.EstimateGas(ctx, root)
	if err != nil {
		return nil, err
	}
	tx, err := a.BuildTransaction(ctx, root, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := a.Sign(key); err != nil {
		return nil, err
	}
	hash, err := a.Broadcast(ctx)
	if err != nil {
		return nil, err
	}

	a.mutex.Lock()
	blockNumber := a.blockNumber
	a.mutex.Unlock()

	return &AnchorResult{
		TxHash:      hash,
		BlockNumber: blockNumber,
		Gas:         gas,
		From:        a.from,
		To:          *tx.To(),
	}, nil
}
