package service

import "poll-anchor/models"

// Duplicate reports a vote code printed on more than one ballot half. The
// later ballot's mapping is the one kept in the index.
type Duplicate struct {
	VoteCode    models.VoteCode    `json:"votecode"`
	FirstSerial uint64             `json:"first_serial"`
	Serial      uint64             `json:"serial"`
	Previous    models.ChoiceValue `json:"previous"`
	Kept        models.ChoiceValue `json:"kept"`
}

// VoteCodeIndex maps every vote code of the poll to the answer it stands for.
// Codes are removed as votes are counted.
type VoteCodeIndex struct {
	entries    map[models.VoteCode]models.ChoiceValue
	owners     map[models.VoteCode]uint64
	duplicates []Duplicate
}

// BuildVoteCodeIndex inserts both codes of every ballot. It never fails; a
// code seen twice keeps the last mapping and is reported by Duplicates.
func BuildVoteCodeIndex(ballots []models.Ballot) *VoteCodeIndex {
	idx := &VoteCodeIndex{
		entries: make(map[models.VoteCode]models.ChoiceValue, 2*len(ballots)),
		owners:  make(map[models.VoteCode]uint64, 2*len(ballots)),
	}
	for _, ballot := range ballots {
		for _, c := range ballot.Choices() {
			if prev, ok := idx.entries[c.VoteCode]; ok {
				idx.duplicates = append(idx.duplicates, Duplicate{
					VoteCode:    c.VoteCode,
					FirstSerial: idx.owners[c.VoteCode],
					Serial:      ballot.Serial,
					Previous:    prev,
					Kept:        c.Choice,
				})
			}
			idx.entries[c.VoteCode] = c.Choice
			idx.owners[c.VoteCode] = ballot.Serial
		}
	}
	return idx
}

func (idx *VoteCodeIndex) Lookup(code models.VoteCode) (models.ChoiceValue, bool) {
	v, ok := idx.entries[code]
	return v, ok
}

// Take removes code and returns its answer.
func (idx *VoteCodeIndex) Take(code models.VoteCode) (models.ChoiceValue, bool) {
	v, ok := idx.entries[code]
	if ok {
		delete(idx.entries, code)
	}
	return v, ok
}

func (idx *VoteCodeIndex) Len() int {
	return len(idx.entries)
}

func (idx *VoteCodeIndex) Duplicates() []Duplicate {
	out := make([]Duplicate, len(idx.duplicates))
	copy(out, idx.duplicates)
	return out
}

// Entries returns a copy of the remaining mappings.
func (idx *VoteCodeIndex) Entries() map[models.VoteCode]models.ChoiceValue {
	out := make(map[models.VoteCode]models.ChoiceValue, len(idx.entries))
	for k, v := range idx.entries {
		out[k] = v
	}
	return out
}
