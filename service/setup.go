package service

import (
	"context"

	"github.com/rs/zerolog"

	"poll-anchor/blockchain"
	"poll-anchor/config"
	"poll-anchor/storage"
)

// Setup wires a PollService from command line settings. The ledger node is
// only dialled when withLedger is set; audits need the explorer alone. The
// returned function releases the node connection.
func Setup(ctx context.Context, cfg *config.Config, logger zerolog.Logger, withLedger bool) (*PollService, func(), error) {
	network, err := config.LoadNetwork(cfg.NetworkPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.New(cfg.StorageDir, storage.WithKeep(cfg.KeepTrees), storage.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	opts := []Option{WithLogger(logger), WithStore(store)}
	closer := func() {}
	if withLedger {
		client, err := blockchain.Dial(ctx, network.Node)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, WithBackend(client))
		closer = client.Close
	}

	svc, err := NewPollService(network, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return svc, closer, nil
}
