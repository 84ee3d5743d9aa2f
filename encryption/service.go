package encryption

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"poll-anchor/models"
)

// CryptoService holds the poll's signing key. The poll address is derived
// from it and is both sender and recipient of the anchoring transaction.
type CryptoService struct {
	key *ecdsa.PrivateKey
}

// NewCryptoService parses a hex private key, with or without a 0x prefix.
func NewCryptoService(hexKey string) (*CryptoService, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &CryptoService{key: key}, nil
}

func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty private key", models.ErrCrypto)
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %v", models.ErrCrypto, err)
	}
	return key, nil
}

func (cs *CryptoService) PrivateKey() *ecdsa.PrivateKey {
	return cs.key
}

// Address is the poll's ledger address.
func (cs *CryptoService) Address() common.Address {
	return crypto.PubkeyToAddress(cs.key.PublicKey)
}

// SignTx signs tx for chainID with the EIP-155 signer. Signing is
// deterministic for a given key and transaction.
func (cs *CryptoService) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return SignTx(tx, chainID, cs.key)
}

func SignTx(tx *types.Transaction, chainID *big.Int, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: missing private key", models.ErrCrypto)
	}
	if tx == nil || chainID == nil {
		return nil, fmt.Errorf("%w: missing transaction or chain id", models.ErrCrypto)
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign transaction: %v", models.ErrCrypto, err)
	}
	return signed, nil
}

// Sign creates a digital signature of data using the poll key
func (cs *CryptoService) Sign(data []byte) ([]byte, error) {
	sig, err := crypto.Sign(Keccak256(data), cs.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCrypto, err)
	}
	return sig, nil
}

// VerifySignature checks that signature over data was produced by address.
func VerifySignature(data, signature []byte, address common.Address) bool {
	pub, err := crypto.SigToPub(Keccak256(data), signature)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == address
}

// Keccak256 computes Keccak-256 hash
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}
