package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"poll-anchor/api"
	"poll-anchor/config"
	"poll-anchor/models"
	"poll-anchor/poll"
	"poll-anchor/service"
)

const usage = `usage: poll-anchor <command> [flags]

commands:
  commit  build the poll commitment, persist the tree and anchor its root
  audit   tally the online votes sent to the poll address
  serve   run the HTTP API

run "poll-anchor <command> -h" for the flags of a command`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	cfg, err := config.Parse(command, os.Args[2:])
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(2)
	}
	logger := newLogger(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "commit":
		err = runCommit(ctx, cfg, logger)
	case "audit":
		err = runAudit(ctx, cfg, logger)
	case "serve":
		err = runServe(ctx, cfg, logger)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func runCommit(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	inputs, err := poll.Load(poll.Paths{Poll: cfg.PollPath, Planes: cfg.PlanesPath})
	if err != nil {
		return err
	}

	svc, closer, err := service.Setup(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer closer()

	receipt, err := svc.Commit(ctx, inputs.Config, inputs.Planes)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("Commitment anchored")
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"Run", receipt.RunID},
		{"Root", receipt.Root},
		{"Leaves", fmt.Sprintf("%d (%d padded)", receipt.Leaves, receipt.PaddedLeaves)},
		{"Tree file", receipt.TreePath},
		{"Address", receipt.Address},
		{"Transaction", receipt.TxHash},
		{"Block", strconv.FormatUint(receipt.BlockNumber, 10)},
		{"Gas", strconv.FormatUint(receipt.Gas, 10)},
	}).Render()
}

func runAudit(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ballots, err := poll.LoadBallots(cfg.BallotsPath)
	if err != nil {
		return err
	}

	svc, closer, err := service.Setup(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer closer()

	report, err := svc.Audit(ctx, ballots)
	if err != nil {
		return err
	}

	tally := report.Tally
	box := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)
	box.WithTitle(pterm.LightGreen("|TALLY|")).WithTitleTopCenter().Println(
		pterm.Sprintfln("%s %d", pterm.LightCyan(models.For.String()+":"), tally.For) +
			pterm.Sprintf("%s %d", pterm.LightRed(models.Against.String()+":"), tally.Against),
	)

	if err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Address", "Transactions", "Skipped", "Unmatched", "Uncounted codes"},
		{
			report.Address,
			strconv.Itoa(tally.Processed),
			strconv.Itoa(tally.Skipped),
			strconv.Itoa(tally.Unmatched),
			strconv.Itoa(report.Uncounted),
		},
	}).Render(); err != nil {
		return err
	}

	for _, d := range report.Duplicates {
		pterm.Warning.Printfln("vote code %s appears on ballots %d and %d", d.VoteCode, d.FirstSerial, d.Serial)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	svc, closer, err := service.Setup(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer closer()

	server := api.NewServer(svc,
		api.WithLogger(logger),
		api.WithBallots(func() ([]models.Ballot, error) { return poll.LoadBallots(cfg.BallotsPath) }),
	)
	pterm.Info.Printfln("serving poll %s on :%d", svc.Address().Hex(), cfg.Port)
	return server.Run(ctx, ":"+strconv.Itoa(cfg.Port))
}
