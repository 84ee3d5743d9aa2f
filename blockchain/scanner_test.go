package blockchain_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poll-anchor/blockchain"
	"poll-anchor/models"
)

var pollAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func explorer(t *testing.T, status int, body string) *blockchain.Scanner {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "txlist", q.Get("action"))
		assert.Equal(t, pollAddress.Hex(), q.Get("address"))
		assert.Equal(t, "0", q.Get("startblock"))
		assert.Equal(t, "99999999", q.Get("endblock"))
		assert.Equal(t, "asc", q.Get("sort"))
		assert.Equal(t, "secret", q.Get("apikey"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return blockchain.NewScanner(srv.URL+"/api", "secret", blockchain.WithScannerLogger(zerolog.Nop()))
}

func TestScannerFetch(t *testing.T) {
	scanner := explorer(t, http.StatusOK, `{"status":"1","message":"OK","result":[
		{"blockNumber":"10","hash":"0xa","from":"0x1","to":"0x2","input":"0x7b7d"},
		{"blockNumber":"11","hash":"0xb","from":"0x1","to":"0x2","input":"0x"}
	]}`)

	records, err := scanner.Fetch(context.Background(), pollAddress)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "10", records[0].BlockNumber)
	require.Equal(t, "0x7b7d", records[0].Input)
	require.Equal(t, "0xb", records[1].Hash)
}

func TestScannerNoTransactions(t *testing.T) {
	scanner := explorer(t, http.StatusOK, `{"status":"0","message":"No transactions found","result":[]}`)
	records, err := scanner.Fetch(context.Background(), pollAddress)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestScannerErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"http error":     {http.StatusInternalServerError, "oops"},
		"malformed json": {http.StatusOK, "{"},
		"explorer error": {http.StatusOK, `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`},
		"bad result":     {http.StatusOK, `{"status":"1","message":"OK","result":"nope"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			scanner := explorer(t, tc.status, tc.body)
			_, err := scanner.Fetch(context.Background(), pollAddress)
			require.ErrorIs(t, err, models.ErrNetwork)
			require.True(t, models.IsFatal(err))
		})
	}
}

func TestScannerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	scanner := blockchain.NewScanner(srv.URL, "k", blockchain.WithScannerLogger(zerolog.Nop()))
	_, err := scanner.Fetch(context.Background(), pollAddress)
	require.ErrorIs(t, err, models.ErrNetwork)
}
