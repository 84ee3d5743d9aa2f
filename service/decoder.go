package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"poll-anchor/models"
)

// DecodeVote extracts the vote carried in a transaction input: "0x", then
// the hex of a UTF-8 JSON document {"votecode": "..."}. Every failure wraps
// models.ErrDecode.
func DecodeVote(tx models.TransactionRecord) (*models.SubmittedVote, error) {
	if !strings.HasPrefix(tx.Input, "0x") {
		return nil, fmt.Errorf("%w: tx %s: input lacks 0x prefix", models.ErrDecode, tx.Hash)
	}
	raw, err := hexutil.Decode(tx.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: tx %s: %v", models.ErrDecode, tx.Hash, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: tx %s: input is not UTF-8", models.ErrDecode, tx.Hash)
	}

	// Keys are matched exactly; encoding/json alone would accept "VOTECODE".
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: tx %s: %v", models.ErrDecode, tx.Hash, err)
	}
	field, ok := fields["votecode"]
	if !ok {
		return nil, fmt.Errorf("%w: tx %s: missing votecode", models.ErrDecode, tx.Hash)
	}
	var code string
	if err := json.Unmarshal(field, &code); err != nil {
		return nil, fmt.Errorf("%w: tx %s: votecode: %v", models.ErrDecode, tx.Hash, err)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: tx %s: empty votecode", models.ErrDecode, tx.Hash)
	}
	return &models.SubmittedVote{VoteCode: models.VoteCode(code)}, nil
}

// TryDecodeVote reports "no vote" instead of an error.
func TryDecodeVote(tx models.TransactionRecord) (*models.SubmittedVote, bool) {
	vote, err := DecodeVote(tx)
	return vote, err == nil
}

// EncodeVote builds the transaction input DecodeVote accepts.
func EncodeVote(code models.VoteCode) (string, error) {
	raw, err := json.Marshal(models.SubmittedVote{VoteCode: code})
	if err != nil {
		return "", err
	}
	return hexutil.Encode(raw), nil
}
