package models

// VoterRecord is a single roster entry. Each record becomes one Merkle leaf.
type VoterRecord struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Email    string `yaml:"email,omitempty" json:"email,omitempty"`
	Eligible bool   `yaml:"eligible" json:"eligible"`
}

type VoterRoster struct {
	Records []VoterRecord `yaml:"records" json:"records"`
}

// PollConfiguration is produced upstream once ballots have been generated
// and a subset of them audited.
type PollConfiguration struct {
	Title      string `yaml:"title" json:"title"`
	NumBallots uint64 `yaml:"num_ballots" json:"num_ballots"`
	// VoterRoster is the base64 encoding of a YAML serialized VoterRoster.
	VoterRoster    string   `yaml:"voter_roster" json:"voter_roster"`
	AuditedBallots []string `yaml:"audited_ballots" json:"audited_ballots"`
}

// Plane is one grid of the printed ballot layout.
type Plane struct {
	Rows []Row `yaml:"rows" json:"rows"`
}

type Row struct {
	Serial uint64 `yaml:"serial" json:"serial"`
	Col1   string `yaml:"col1" json:"col1"`
	Col2   string `yaml:"col2" json:"col2"`
	Col3   string `yaml:"col3" json:"col3"`
}

// CommittedCells returns the selectable cells of a row in commitment order.
func (r Row) CommittedCells() []string {
	return []string{r.Col1, r.Col3}
}
