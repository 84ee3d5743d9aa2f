package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"poll-anchor/blockchain"
	"poll-anchor/config"
	"poll-anchor/encryption"
	"poll-anchor/merkle"
	"poll-anchor/models"
	"poll-anchor/storage"
)

// TransactionSource lists the ledger transactions of an address in ledger
// order. *blockchain.Scanner implements it.
type TransactionSource interface {
	Fetch(ctx context.Context, address common.Address) ([]models.TransactionRecord, error)
}

// PollService runs the commit and audit flows for one poll key. Runs are
// serialized.
type PollService struct {
	network *config.NetworkConfig
	crypto  *encryption.CryptoService
	backend blockchain.Backend
	source  TransactionSource
	store   *storage.TreeStore
	metrics *MetricsCollector
	logger  zerolog.Logger

	mu         sync.RWMutex
	run        sync.Mutex
	lastCommit *CommitReceipt
	lastAudit  *AuditReport
}

type CommitReceipt struct {
	RunID        string    `json:"run_id"`
	Root         string    `json:"root"`
	Leaves       int       `json:"leaves"`
	PaddedLeaves int       `json:"padded_leaves"`
	TreePath     string    `json:"tree_path"`
	TxHash       string    `json:"tx_hash"`
	BlockNumber  uint64    `json:"block_number"`
	Gas          uint64    `json:"gas"`
	Address      string    `json:"address"`
	Attestation  string    `json:"attestation"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuditReport struct {
	RunID      string      `json:"run_id"`
	Address    string      `json:"address"`
	Tally      TallyResult `json:"tally"`
	Duplicates []Duplicate `json:"duplicates"`
	// Uncounted is the number of index entries no transaction claimed.
	Uncounted int       `json:"uncounted"`
	CreatedAt time.Time `json:"created_at"`
}

type Option func(*PollService)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *PollService) {
		s.logger = logger
	}
}

// WithBackend sets the ledger RPC client used to anchor commitments.
func WithBackend(backend blockchain.Backend) Option {
	return func(s *PollService) {
		s.backend = backend
	}
}

// WithTransactionSource replaces the explorer scanner.
func WithTransactionSource(source TransactionSource) Option {
	return func(s *PollService) {
		s.source = source
	}
}

func WithStore(store *storage.TreeStore) Option {
	return func(s *PollService) {
		s.store = store
	}
}

func NewPollService(network *config.NetworkConfig, opts ...Option) (*PollService, error) {
	if network == nil {
		return nil, fmt.Errorf("%w: missing network config", models.ErrConfig)
	}
	cs, err := encryption.NewCryptoService(network.Key)
	if err != nil {
		return nil, err
	}

	s := &PollService{
		network: network,
		crypto:  cs,
		metrics: NewMetricsCollector(),
		logger:  zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.source == nil {
		s.source = blockchain.NewScanner(network.Explorer, network.API, blockchain.WithScannerLogger(s.logger))
	}
	return s, nil
}

// Address is the poll's public ledger address.
func (s *PollService) Address() common.Address {
	return s.crypto.Address()
}

func (s *PollService) Metrics() MetricsResponse {
	return s.metrics.GetMetrics()
}

// ResetMetrics clears the commit and audit counters.
func (s *PollService) ResetMetrics() {
	s.metrics.Reset()
}

func (s *PollService) Store() *storage.TreeStore {
	return s.store
}

func (s *PollService) LastCommit() *CommitReceipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCommit
}

func (s *PollService) LastAudit() *AuditReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAudit
}

// Commit builds the Merkle commitment of the poll data, anchors its root on
// the ledger and then publishes the full tree as merkle.yaml.
func (s *PollService) Commit(ctx context.Context, cfg *models.PollConfiguration, planes []models.Plane) (receipt *CommitReceipt, err error) {
	s.run.Lock()
	defer s.run.Unlock()

	started := s.metrics.RecordCommitStart()
	defer func() { s.metrics.RecordCommitEnd(started, err) }()

	runID := uuid.New().String()
	logger := s.logger.With().Str("run_id", runID).Str("address", s.Address().Hex()).Logger()

	if s.backend == nil {
		return nil, fmt.Errorf("%w: no ledger backend configured", models.ErrConfig)
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: no tree store configured", models.ErrConfig)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing poll configuration", models.ErrConfig)
	}

	leaves, err := CommitLeaves(cfg, planes)
	if err != nil {
		return nil, err
	}

	builder := merkle.NewBuilder()
	builder.PushAll(leaves)
	commitment, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfig, err)
	}
	logger = logger.With().Str("root", commitment.RootHex()).Logger()
	logger.Info().Int("leaves", len(leaves)).Int("padded", len(commitment.Leaves())).Msg("built commitment")

	// The tree only becomes the current commitment once its root is broadcast.
	snapshot, err := s.store.Stage(commitment, runID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to persist tree")
		return nil, err
	}

	anchor := blockchain.NewAnchor(s.backend, s.Address(), blockchain.WithLogger(logger))
	result, err := anchor.Run(ctx, commitment.Root(), s.crypto.PrivateKey())
	if err != nil {
		logger.Error().Err(err).Str("snapshot", snapshot).Msg("anchor failed, tree left unpublished")
		return nil, err
	}

	path, err := s.store.Publish(snapshot)
	if err != nil {
		logger.Error().Err(err).Str("tx", result.TxHash.Hex()).Str("snapshot", snapshot).Msg("root broadcast but tree not published")
		return nil, err
	}

	attestation, err := s.crypto.Sign(commitment.Root())
	if err != nil {
		return nil, err
	}

	receipt = &CommitReceipt{
		RunID:        runID,
		Root:         hexutil.Encode(commitment.Root()),
		Leaves:       commitment.OriginalLeaves(),
		PaddedLeaves: len(commitment.Leaves()),
		TreePath:     path,
		TxHash:       result.TxHash.Hex(),
		BlockNumber:  result.BlockNumber,
		Gas:          result.Gas,
		Address:      s.Address().Hex(),
		Attestation:  hexutil.Encode(attestation),
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.lastCommit = receipt
	s.mu.Unlock()

	logger.Info().Str("tx", receipt.TxHash).Msg("commitment anchored")
	return receipt, nil
}

// Audit fetches every transaction of the poll address and tallies the
// online votes against ballots.
func (s *PollService) Audit(ctx context.Context, ballots []models.Ballot) (report *AuditReport, err error) {
	s.run.Lock()
	defer s.run.Unlock()

	started := s.metrics.RecordAuditStart()
	var tally *TallyResult
	defer func() { s.metrics.RecordAuditEnd(started, tally) }()

	runID := uuid.New().String()
	address := s.Address()
	logger := s.logger.With().Str("run_id", runID).Str("address", address.Hex()).Logger()

	index := BuildVoteCodeIndex(ballots)
	for _, d := range index.Duplicates() {
		logger.Warn().
			Str("votecode", string(d.VoteCode)).
			Uint64("first_serial", d.FirstSerial).
			Uint64("serial", d.Serial).
			Msg("duplicate vote code, keeping the later ballot")
	}

	txs, err := s.source.Fetch(ctx, address)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch transactions")
		return nil, err
	}

	result := NewVoteCountingService(logger).CountVotes(index, txs)
	tally = &result

	report = &AuditReport{
		RunID:      runID,
		Address:    address.Hex(),
		Tally:      result,
		Duplicates: index.Duplicates(),
		Uncounted:  index.Len(),
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.lastAudit = report
	s.mu.Unlock()

	logger.Info().
		Uint64("for", result.For).
		Uint64("against", result.Against).
		Int("skipped", result.Skipped).
		Int("unmatched", result.Unmatched).
		Msg("audit complete")
	return report, nil
}
