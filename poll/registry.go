// Package poll loads the inputs produced upstream for a poll: the ballot
// list, the poll configuration and the ballot planes.
package poll

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"poll-anchor/models"
)

// Inputs groups everything a commit or audit run reads from disk.
type Inputs struct {
	Config  *models.PollConfiguration
	Ballots []models.Ballot
	Planes  []models.Plane
}

// Paths lists the input files. Empty paths are skipped.
type Paths struct {
	Poll    string
	Ballots string
	Planes  string
}

func Load(paths Paths) (*Inputs, error) {
	inputs := &Inputs{}
	var err error
	if paths.Poll != "" {
		if inputs.Config, err = LoadPollConfiguration(paths.Poll); err != nil {
			return nil, err
		}
	}
	if paths.Ballots != "" {
		if inputs.Ballots, err = LoadBallots(paths.Ballots); err != nil {
			return nil, err
		}
	}
	if paths.Planes != "" {
		if inputs.Planes, err = LoadPlanes(paths.Planes); err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

func LoadPollConfiguration(path string) (*models.PollConfiguration, error) {
	var cfg models.PollConfiguration
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.VoterRoster == "" {
		return nil, fmt.Errorf("%w: %s: voter_roster is missing", models.ErrConfig, path)
	}
	return &cfg, nil
}

func LoadBallots(path string) ([]models.Ballot, error) {
	var ballots []models.Ballot
	if err := readYAML(path, &ballots); err != nil {
		return nil, err
	}
	if err := ValidateBallots(ballots); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ballots, nil
}

func LoadPlanes(path string) ([]models.Plane, error) {
	var planes []models.Plane
	if err := readYAML(path, &planes); err != nil {
		return nil, err
	}
	return planes, nil
}

// ValidateBallots checks that every ballot carries two vote codes, one per
// answer.
func ValidateBallots(ballots []models.Ballot) error {
	for _, b := range ballots {
		for _, c := range b.Choices() {
			if strings.TrimSpace(string(c.VoteCode)) == "" {
				return fmt.Errorf("%w: ballot %d has an empty vote code", models.ErrConfig, b.Serial)
			}
		}
		if b.Choice1.Choice == b.Choice2.Choice {
			return fmt.Errorf("%w: ballot %d maps both codes to %s", models.ErrConfig, b.Serial, b.Choice1.Choice)
		}
	}
	return nil
}

// DecodeRoster reverses the base64 and YAML encoding of the roster carried
// in the poll configuration.
func DecodeRoster(cfg *models.PollConfiguration) (*models.VoterRoster, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.VoterRoster))
	if err != nil {
		return nil, fmt.Errorf("%w: voter roster is not base64: %v", models.ErrConfig, err)
	}
	var roster models.VoterRoster
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("%w: invalid voter roster: %v", models.ErrConfig, err)
	}
	return &roster, nil
}

// EncodeRoster is the inverse of DecodeRoster.
func EncodeRoster(roster *models.VoterRoster) (string, error) {
	raw, err := yaml.Marshal(roster)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode roster: %v", models.ErrConfig, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", models.ErrIO, path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", models.ErrConfig, path, err)
	}
	return nil
}
