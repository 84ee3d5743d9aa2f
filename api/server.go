// File: api/server.go
package api

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"

	"poll-anchor/models"
	"poll-anchor/service"
)

// Server exposes the poll service over HTTP.
type Server struct {
	svc     *service.PollService
	app     *fiber.App
	logger  zerolog.Logger
	ballots func() ([]models.Ballot, error)
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithBallots sets the ballot source used when an audit request carries no
// ballots of its own.
func WithBallots(load func() ([]models.Ballot, error)) Option {
	return func(s *Server) {
		s.ballots = load
	}
}

type StatusResponse struct {
	Address    string                 `json:"address"`
	LastCommit *service.CommitReceipt `json:"last_commit,omitempty"`
	LastAudit  *service.AuditReport   `json:"last_audit,omitempty"`
}

type CommitmentResponse struct {
	Root           string    `json:"root"`
	Hash           string    `json:"hash"`
	RunID          string    `json:"run_id,omitempty"`
	OriginalLeaves int       `json:"original_leaves"`
	Leaves         int       `json:"leaves"`
	CreatedAt      time.Time `json:"created_at"`
	Path           string    `json:"path"`
}

type AuditRequest struct {
	Ballots []models.Ballot `json:"ballots"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(svc *service.PollService, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.app.Use(cors.New())
	s.app.Use(s.logRequests)

	s.app.Get("/api/status", s.handleGetStatus)
	s.app.Get("/api/commitment", s.handleGetCommitment)
	s.app.Post("/api/audit", s.handleAudit)
	s.app.Get("/api/metrics", s.handleGetMetrics)
	s.app.Delete("/api/metrics", s.handleResetMetrics)
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting poll anchor API")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(ctx *fiber.Ctx) error {
	start := time.Now()
	err := ctx.Next()
	s.logger.Debug().
		Str("method", ctx.Method()).
		Str("path", ctx.Path()).
		Int("status", ctx.Response().StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("request")
	return err
}

func (s *Server) handleGetStatus(ctx *fiber.Ctx) error {
	return ctx.JSON(StatusResponse{
		Address:    s.svc.Address().Hex(),
		LastCommit: s.svc.LastCommit(),
		LastAudit:  s.svc.LastAudit(),
	})
}

func (s *Server) handleGetCommitment(ctx *fiber.Ctx) error {
	store := s.svc.Store()
	if store == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "no tree store configured"})
	}
	commitment, file, err := store.LoadLatest()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ctx.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "no commitment has been persisted"})
		}
		return s.fail(ctx, err)
	}
	return ctx.JSON(CommitmentResponse{
		Root:           "0x" + commitment.RootHex(),
		Hash:           file.Hash,
		RunID:          file.RunID,
		OriginalLeaves: commitment.OriginalLeaves(),
		Leaves:         len(commitment.Leaves()),
		CreatedAt:      file.CreatedAt,
		Path:           store.Path(),
	})
}

func (s *Server) handleAudit(ctx *fiber.Ctx) error {
	var req AuditRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
		}
	}

	ballots := req.Ballots
	if len(ballots) == 0 {
		if s.ballots == nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "no ballots given"})
		}
		var err error
		if ballots, err = s.ballots(); err != nil {
			return s.fail(ctx, err)
		}
	}

	report, err := s.svc.Audit(ctx.UserContext(), ballots)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(report)
}

func (s *Server) handleGetMetrics(ctx *fiber.Ctx) error {
	return ctx.JSON(s.svc.Metrics())
}

func (s *Server) handleResetMetrics(ctx *fiber.Ctx) error {
	s.svc.ResetMetrics()
	return ctx.JSON(s.svc.Metrics())
}

func (s *Server) fail(ctx *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrConfig), errors.Is(err, models.ErrDecode):
		status = fiber.StatusBadRequest
	case errors.Is(err, models.ErrNetwork):
		status = fiber.StatusBadGateway
	}
	s.logger.Error().Err(err).Str("path", ctx.Path()).Int("status", status).Msg("request failed")
	return ctx.Status(status).JSON(errorResponse{Error: err.Error()})
}

// Run serves on addr until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context, addr string) error {
	serverChan := make(chan error, 1)
	go func() {
		serverChan <- s.Start(addr)
	}()

	select {
	case err := <-serverChan:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down poll anchor API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}
