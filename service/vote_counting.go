package service

import (
	"github.com/rs/zerolog"

	"poll-anchor/models"
)

// TallyResult is the outcome of counting the online votes.
type TallyResult struct {
	For     uint64 `json:"for"`
	Against uint64 `json:"against"`
	// Skipped transactions carried no decodable vote.
	Skipped int `json:"skipped"`
	// Unmatched votes used a code that is unknown or was already counted.
	Unmatched int `json:"unmatched"`
	Processed int `json:"processed"`
}

type VoteCountingService struct {
	logger zerolog.Logger
}

func NewVoteCountingService(logger zerolog.Logger) *VoteCountingService {
	return &VoteCountingService{logger: logger}
}

// CountVotes walks txs in ledger order. The first transaction carrying a
// known code counts it and removes the code from index, so every code is
// counted at most once. The two codes of one ballot are independent.
func (vcs *VoteCountingService) CountVotes(index *VoteCodeIndex, txs []models.TransactionRecord) TallyResult {
	var result TallyResult
	for _, tx := range txs {
		result.Processed++

		vote, err := DecodeVote(tx)
		if err != nil {
			result.Skipped++
			vcs.logger.Debug().Err(err).Str("tx", tx.Hash).Msg("skipping transaction")
			continue
		}

		choice, ok := index.Take(vote.VoteCode)
		if !ok {
			result.Unmatched++
			vcs.logger.Debug().Str("tx", tx.Hash).Msg("vote code unknown or already counted")
			continue
		}

		switch choice {
		case models.For:
			result.For++
		case models.Against:
			result.Against++
		}
	}
	return result
}

// Count tallies without logging.
func Count(index *VoteCodeIndex, txs []models.TransactionRecord) TallyResult {
	return NewVoteCountingService(zerolog.Nop()).CountVotes(index, txs)
}
