package models

// SubmittedVote is the payload a voter embeds in a ledger transaction.
type SubmittedVote struct {
	VoteCode VoteCode `json:"votecode"`
}
