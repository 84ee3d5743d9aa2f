package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"poll-anchor/api"
	"poll-anchor/config"
	"poll-anchor/models"
	"poll-anchor/poll"
	"poll-anchor/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Parse("api", os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid arguments")
	}
	if !cfg.Debug {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	svc, closer, err := service.Setup(ctx, cfg, logger, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize poll service")
	}
	defer closer()

	server := api.NewServer(svc,
		api.WithLogger(logger),
		api.WithBallots(func() ([]models.Ballot, error) { return poll.LoadBallots(cfg.BallotsPath) }),
	)
	if err := server.Run(ctx, ":"+strconv.Itoa(cfg.Port)); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server shutdown completed")
}
