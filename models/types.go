// File: models/types.go
package models

import (
	"fmt"
	"strings"
)

// VoteCode identifies one half of a printed ballot.
type VoteCode string

// ChoiceValue is the answer a vote code stands for.
type ChoiceValue int

const (
	For ChoiceValue = iota + 1
	Against
)

func (c ChoiceValue) String() string {
	switch c {
	case For:
		return "For"
	case Against:
		return "Against"
	default:
		return fmt.Sprintf("ChoiceValue(%d)", int(c))
	}
}

// ParseChoiceValue accepts the textual forms used in ballot files.
func ParseChoiceValue(s string) (ChoiceValue, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "for":
		return For, nil
	case "against":
		return Against, nil
	}
	return 0, fmt.Errorf("unknown choice value %q", s)
}

func (c ChoiceValue) MarshalText() ([]byte, error) {
	if c != For && c != Against {
		return nil, fmt.Errorf("invalid choice value %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *ChoiceValue) UnmarshalText(text []byte) error {
	v, err := ParseChoiceValue(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type Choice struct {
	VoteCode VoteCode    `json:"votecode" yaml:"votecode"`
	Choice   ChoiceValue `json:"choice" yaml:"choice"`
}

// Ballot carries one vote code per answer. At most one of the two codes
// should ever be submitted.
type Ballot struct {
	Serial  uint64 `json:"serial" yaml:"serial"`
	Choice1 Choice `json:"choice1" yaml:"choice1"`
	Choice2 Choice `json:"choice2" yaml:"choice2"`
}

func (b Ballot) Choices() [2]Choice {
	return [2]Choice{b.Choice1, b.Choice2}
}
