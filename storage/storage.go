// File: storage/storage.go
package storage

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"poll-anchor/merkle"
	"poll-anchor/models"
)

const (
	// DefaultTreeFile is where the full tree is written for the external verifier.
	DefaultTreeFile = "merkle.yaml"
	// DefaultKeep is the number of timestamped snapshots kept next to it.
	DefaultKeep = 5

	snapshotLayout = "20060102150405"
)

// TreeFile is the on-disk layout of a persisted tree. Byte fields are hex
// encoded; nodes are in heap order with index 1 the root.
type TreeFile struct {
	Hash           string    `yaml:"hash"`
	Root           string    `yaml:"root"`
	RunID          string    `yaml:"run_id,omitempty"`
	CreatedAt      time.Time `yaml:"created_at"`
	OriginalLeaves int       `yaml:"original_leaves"`
	Leaves         []string  `yaml:"leaves"`
	Nodes          []string  `yaml:"nodes"`
}

type TreeStore struct {
	dataDir string
	keep    int
	mutex   sync.RWMutex
	logger  zerolog.Logger
}

type Option func(*TreeStore)

func WithKeep(keep int) Option {
	return func(s *TreeStore) {
		s.keep = keep
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *TreeStore) {
		s.logger = logger
	}
}

func New(dataDir string, opts ...Option) (*TreeStore, error) {
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get absolute path: %v", models.ErrIO, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %v", models.ErrIO, err)
	}

	s := &TreeStore{
		dataDir: absPath,
		keep:    DefaultKeep,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TreeStore) Path() string {
	return filepath.Join(s.dataDir, DefaultTreeFile)
}

// Save stages the tree and publishes it at once.
func (s *TreeStore) Save(c *merkle.Commitment, runID string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	snapshot, err := s.stage(c, runID)
	if err != nil {
		return "", err
	}
	return s.publish(snapshot)
}

// Stage writes a timestamped snapshot of the tree, named after the run, and
// leaves DefaultTreeFile untouched.
func (s *TreeStore) Stage(c *merkle.Commitment, runID string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stage(c, runID)
}

// Publish copies a staged snapshot to DefaultTreeFile and rotates old
// snapshots. Errors are returned as is; nothing is retried.
func (s *TreeStore) Publish(snapshot string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.publish(snapshot)
}

func (s *TreeStore) stage(c *merkle.Commitment, runID string) (string, error) {
	now := time.Now().UTC()
	data, err := yaml.Marshal(encodeTree(c, runID, now))
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode tree: %v", models.ErrIO, err)
	}

	name := "merkle_" + now.Format(snapshotLayout)
	if runID != "" {
		name += "_" + filepath.Base(runID)
	}
	snapshot := filepath.Join(s.dataDir, name+".yaml")
	if err := writeAtomic(snapshot, data); err != nil {
		return "", err
	}

	s.logger.Debug().Str("path", snapshot).Str("root", c.RootHex()).Msg("staged merkle tree")
	return snapshot, nil
}

func (s *TreeStore) publish(snapshot string) (string, error) {
	data, err := os.ReadFile(snapshot)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read snapshot %s: %w", models.ErrIO, snapshot, err)
	}

	path := s.Path()
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	if err := s.cleanupOldFiles("merkle_*.yaml", s.keep); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clean up old tree snapshots")
	}

	s.logger.Info().Str("path", path).Str("snapshot", snapshot).Msg("published merkle tree")
	return path, nil
}

// Load reads a persisted tree and verifies it against its own leaves.
func (s *TreeStore) Load(path string) (*merkle.Commitment, *TreeFile, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return LoadFile(path)
}

// LoadLatest loads DefaultTreeFile from the store directory.
func (s *TreeStore) LoadLatest() (*merkle.Commitment, *TreeFile, error) {
	return s.Load(s.Path())
}

func LoadFile(path string) (*merkle.Commitment, *TreeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read tree file %s: %w", models.ErrIO, path, err)
	}

	var file TreeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to decode tree file %s: %v", models.ErrIO, path, err)
	}

	c, err := decodeTree(&file)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid tree file %s: %v", models.ErrIO, path, err)
	}
	return c, &file, nil
}

func encodeTree(c *merkle.Commitment, runID string, now time.Time) TreeFile {
	file := TreeFile{
		Hash:           c.HashName(),
		Root:           c.RootHex(),
		RunID:          runID,
		CreatedAt:      now,
		OriginalLeaves: c.OriginalLeaves(),
	}
	for _, leaf := range c.Leaves() {
		file.Leaves = append(file.Leaves, hex.EncodeToString(leaf))
	}
	for _, node := range c.Nodes() {
		file.Nodes = append(file.Nodes, hex.EncodeToString(node))
	}
	return file
}

func decodeTree(file *TreeFile) (*merkle.Commitment, error) {
	leaves, err := decodeAll(file.Leaves)
	if err != nil {
		return nil, fmt.Errorf("leaves: %w", err)
	}
	nodes, err := decodeAll(file.Nodes)
	if err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	c, err := merkle.NewCommitment(leaves, nodes, file.OriginalLeaves)
	if err != nil {
		return nil, err
	}
	if c.RootHex() != strings.ToLower(file.Root) {
		return nil, fmt.Errorf("root %s does not match recorded root %s", c.RootHex(), file.Root)
	}
	return c, nil
}

func decodeAll(values []string) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		b, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %v", i, err)
		}
		out[i] = b
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	// Write to temporary file first
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", models.ErrIO, tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: failed to save %s: %v", models.ErrIO, path, err)
	}
	return nil
}

type snapshotFile struct {
	path      string
	timestamp int64
}

func (s *TreeStore) cleanupOldFiles(pattern string, keep int) error {
	files, err := filepath.Glob(filepath.Join(s.dataDir, pattern))
	if err != nil {
		return err
	}

	var snapshots []snapshotFile
	for _, file := range files {
		base := filepath.Base(file)
		stamp := strings.TrimSuffix(strings.TrimPrefix(base, "merkle_"), ".yaml")
		stamp, _, _ = strings.Cut(stamp, "_")
		ts, err := time.Parse(snapshotLayout, stamp)
		if err != nil {
			s.logger.Warn().Str("file", base).Err(err).Msg("invalid timestamp in snapshot name")
			continue
		}
		snapshots = append(snapshots, snapshotFile{path: file, timestamp: ts.Unix()})
	}

	if len(snapshots) <= keep {
		return nil
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].timestamp != snapshots[j].timestamp {
			return snapshots[i].timestamp < snapshots[j].timestamp
		}
		return snapshots[i].path < snapshots[j].path
	})

	for i := 0; i < len(snapshots)-keep; i++ {
		if err := os.Remove(snapshots[i].path); err != nil {
			s.logger.Warn().Str("file", snapshots[i].path).Err(err).Msg("failed to remove old snapshot")
		} else {
			s.logger.Debug().Str("file", snapshots[i].path).Msg("removed old snapshot")
		}
	}
	return nil
}
