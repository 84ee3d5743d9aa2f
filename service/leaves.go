package service

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"poll-anchor/merkle"
	"poll-anchor/models"
	"poll-anchor/poll"
)

// CommitLeaves assembles the committed data in order: one YAML document per
// roster record, the audited ballots, then Col1 and Col3 of every plane row.
func CommitLeaves(cfg *models.PollConfiguration, planes []models.Plane) (merkle.LeafData, error) {
	roster, err := poll.DecodeRoster(cfg)
	if err != nil {
		return nil, err
	}

	var leaves merkle.LeafData
	for _, record := range roster.Records {
		out, err := yaml.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode voter %s: %v", models.ErrConfig, record.ID, err)
		}
		leaves = append(leaves, out)
	}

	for _, ballot := range cfg.AuditedBallots {
		leaves = append(leaves, []byte(ballot))
	}

	for _, plane := range planes {
		for _, row := range plane.Rows {
			for _, cell := range row.CommittedCells() {
				leaves = append(leaves, []byte(cell))
			}
		}
	}
	return leaves, nil
}
