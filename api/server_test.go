package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"poll-anchor/api"
	"poll-anchor/config"
	"poll-anchor/merkle"
	"poll-anchor/models"
	"poll-anchor/service"
	"poll-anchor/storage"
)

const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type staticSource struct {
	txs []models.TransactionRecord
	err error
}

func (s staticSource) Fetch(context.Context, common.Address) ([]models.TransactionRecord, error) {
	return s.txs, s.err
}

func newServer(t *testing.T, source service.TransactionSource, opts ...api.Option) (*api.Server, *storage.TreeStore) {
	t.Helper()
	store, err := storage.New(t.TempDir(), storage.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	svc, err := service.NewPollService(&config.NetworkConfig{
		Node:     "http://localhost:8545",
		Key:      devKey,
		Explorer: config.DefaultExplorer,
	}, service.WithLogger(zerolog.Nop()), service.WithStore(store), service.WithTransactionSource(source))
	require.NoError(t, err)
	opts = append([]api.Option{api.WithLogger(zerolog.Nop())}, opts...)
	return api.NewServer(svc, opts...), store
}

func do(t *testing.T, srv *api.Server, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func voteInput(t *testing.T, code string) string {
	t.Helper()
	input, err := service.EncodeVote(models.VoteCode(code))
	require.NoError(t, err)
	return input
}

func TestStatus(t *testing.T) {
	srv, _ := newServer(t, staticSource{})
	status, body := do(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, status)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", resp.Address)
	require.Nil(t, resp.LastCommit)
}

func TestCommitment(t *testing.T) {
	srv, store := newServer(t, staticSource{})

	status, _ := do(t, srv, http.MethodGet, "/api/commitment", "")
	require.Equal(t, http.StatusNotFound, status)

	b := merkle.NewBuilder()
	b.PushString("roster")
	b.PushString("ballot")
	b.PushString("cell")
	c, err := b.Build()
	require.NoError(t, err)
	_, err = store.Save(c, "run-9")
	require.NoError(t, err)

	status, body := do(t, srv, http.MethodGet, "/api/commitment", "")
	require.Equal(t, http.StatusOK, status)
	var resp api.CommitmentResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "0x"+c.RootHex(), resp.Root)
	require.Equal(t, "sha3-256", resp.Hash)
	require.Equal(t, "run-9", resp.RunID)
	require.Equal(t, 3, resp.OriginalLeaves)
	require.Equal(t, 4, resp.Leaves)
}

func TestAudit(t *testing.T) {
	srv, _ := newServer(t, staticSource{txs: []models.TransactionRecord{
		{Hash: "0x1", Input: voteInput(t, "1111")},
		{Hash: "0x2", Input: voteInput(t, "1111")},
		{Hash: "0x3", Input: "0xzz"},
	}})

	status, body := do(t, srv, http.MethodPost, "/api/audit", `{"ballots":[
		{"serial":1,"choice1":{"votecode":"1111","choice":"For"},"choice2":{"votecode":"2222","choice":"Against"}}
	]}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var report service.AuditReport
	require.NoError(t, json.Unmarshal(body, &report))
	require.Equal(t, service.TallyResult{For: 1, Skipped: 1, Unmatched: 1, Processed: 3}, report.Tally)

	status, body = do(t, srv, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, status)
	var metrics service.MetricsResponse
	require.NoError(t, json.Unmarshal(body, &metrics))
	require.Equal(t, 1, metrics.Audit.Count)
	require.Equal(t, 1, metrics.TransactionsSkipped)

	status, body = do(t, srv, http.MethodDelete, "/api/metrics", "")
	require.Equal(t, http.StatusOK, status)
	metrics = service.MetricsResponse{}
	require.NoError(t, json.Unmarshal(body, &metrics))
	require.Zero(t, metrics.Audit.Count)
	require.Zero(t, metrics.TransactionsProcessed)

	status, body = do(t, srv, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, status)
	metrics = service.MetricsResponse{}
	require.NoError(t, json.Unmarshal(body, &metrics))
	require.Zero(t, metrics.Audit.Count)
}

func TestAuditUsesDefaultBallots(t *testing.T) {
	ballots := []models.Ballot{{
		Serial:  1,
		Choice1: models.Choice{VoteCode: "1111", Choice: models.For},
		Choice2: models.Choice{VoteCode: "2222", Choice: models.Against},
	}}
	srv, _ := newServer(t,
		staticSource{txs: []models.TransactionRecord{{Hash: "0x1", Input: voteInput(t, "2222")}}},
		api.WithBallots(func() ([]models.Ballot, error) { return ballots, nil }),
	)

	status, body := do(t, srv, http.MethodPost, "/api/audit", "")
	require.Equal(t, http.StatusOK, status, string(body))
	var report service.AuditReport
	require.NoError(t, json.Unmarshal(body, &report))
	require.Equal(t, uint64(1), report.Tally.Against)
}

func TestAuditErrors(t *testing.T) {
	srv, _ := newServer(t, staticSource{err: errors.Join(models.ErrNetwork, errors.New("explorer down"))})

	status, _ := do(t, srv, http.MethodPost, "/api/audit", "")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/api/audit", "{")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/api/audit", `{"ballots":[{"serial":1,"choice1":{"votecode":"1","choice":"For"},"choice2":{"votecode":"2","choice":"Against"}}]}`)
	require.Equal(t, http.StatusBadGateway, status)
}
