package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"poll-anchor/models"
)

const (
	noTransactions = "No transactions found"
	lastBlock      = 99999999
	maxBody        = 64 << 20
)

// Scanner lists the transactions of an address through an Etherscan
// compatible explorer API.
type Scanner struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

type ScannerOption func(*Scanner)

func WithHTTPClient(client *http.Client) ScannerOption {
	return func(s *Scanner) {
		s.client = client
	}
}

func WithScannerLogger(logger zerolog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

func NewScanner(baseURL, apiKey string, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  http.DefaultClient,
		logger:  zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Fetch returns every transaction of address, oldest first. All failures
// wrap models.ErrNetwork.
func (s *Scanner) Fetch(ctx context.Context, address common.Address) ([]models.TransactionRecord, error) {
	endpoint, err := s.endpoint(address)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build explorer request: %v", models.ErrNetwork, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: explorer request failed: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: explorer returned HTTP %d", models.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read explorer response: %v", models.ErrNetwork, err)
	}

	var payload explorerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed explorer response: %v", models.ErrNetwork, err)
	}

	if payload.Status != "1" {
		if payload.Message == noTransactions {
			s.logger.Debug().Str("address", address.Hex()).Msg("no transactions found")
			return []models.TransactionRecord{}, nil
		}
		var detail string
		if json.Unmarshal(payload.Result, &detail) != nil {
			detail = string(payload.Result)
		}
		return nil, fmt.Errorf("%w: explorer error %q: %s", models.ErrNetwork, payload.Message, detail)
	}

	var records []models.TransactionRecord
	if err := json.Unmarshal(payload.Result, &records); err != nil {
		return nil, fmt.Errorf("%w: malformed explorer result: %v", models.ErrNetwork, err)
	}

	s.logger.Debug().Str("address", address.Hex()).Int("transactions", len(records)).Msg("fetched transactions")
	return records, nil
}

func (s *Scanner) endpoint(address common.Address) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid explorer url: %v", models.ErrConfig, err)
	}
	q := u.Query()
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address.Hex())
	q.Set("startblock", "0")
	q.Set("endblock", strconv.Itoa(lastBlock))
	q.Set("sort", "asc")
	q.Set("apikey", s.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
