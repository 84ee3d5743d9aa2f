// Package config loads the ledger connection settings and the command line
// configuration shared by the CLI and the API binary.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"poll-anchor/models"
)

const (
	DefaultExplorer = "https://api.etherscan.io/api"
	// NetworkEnv overrides the network config path given on the command line.
	NetworkEnv = "POLL_ANCHOR_NETWORK"
)

// NetworkConfig is the ledger connection: node RPC URL, poll private key
// (hex), explorer API key and an optional explorer base URL.
type NetworkConfig struct {
	Node     string `yaml:"node"`
	Key      string `yaml:"key"`
	API      string `yaml:"api"`
	Explorer string `yaml:"explorer,omitempty"`
}

func LoadNetwork(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read network config %s: %v", models.ErrConfig, path, err)
	}
	return ParseNetwork(data)
}

func ParseNetwork(data []byte) (*NetworkConfig, error) {
	var cfg NetworkConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid network config: %v", models.ErrConfig, err)
	}
	if cfg.Explorer == "" {
		cfg.Explorer = DefaultExplorer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *NetworkConfig) Validate() error {
	if strings.TrimSpace(c.Node) == "" {
		return fmt.Errorf("%w: node is required", models.ErrConfig)
	}
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("%w: key is required", models.ErrConfig)
	}
	if _, err := url.ParseRequestURI(c.Explorer); err != nil {
		return fmt.Errorf("%w: invalid explorer url %q: %v", models.ErrConfig, c.Explorer, err)
	}
	return nil
}

// Config holds the command line settings.
type Config struct {
	NetworkPath string
	StorageDir  string
	PollPath    string
	BallotsPath string
	PlanesPath  string
	KeepTrees   int
	Port        int
	Debug       bool
}

// Parse reads flags from args (without the program name) and applies the
// NetworkEnv override.
func Parse(name string, args []string) (*Config, error) {
	config := &Config{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&config.NetworkPath, "network", "network.yaml", "Ledger network config (YAML)")
	fs.StringVar(&config.StorageDir, "storage", "data", "Directory for the merkle tree file")
	fs.StringVar(&config.PollPath, "poll", "poll.yaml", "Poll configuration (YAML)")
	fs.StringVar(&config.BallotsPath, "ballots", "ballots.yaml", "Ballots (YAML)")
	fs.StringVar(&config.PlanesPath, "planes", "planes.yaml", "Ballot planes (YAML)")
	fs.IntVar(&config.KeepTrees, "keep", 5, "Number of timestamped tree snapshots to keep")
	fs.IntVar(&config.Port, "port", 8080, "API server port")
	fs.BoolVar(&config.Debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfig, err)
	}

	if env := os.Getenv(NetworkEnv); env != "" {
		config.NetworkPath = env
	}

	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("%w: port must be between 1 and 65535", models.ErrConfig)
	}
	if config.KeepTrees < 0 {
		return nil, fmt.Errorf("%w: keep must not be negative", models.ErrConfig)
	}
	return config, nil
}
