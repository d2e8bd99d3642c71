package gas

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gas-alert-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		Endpoint:      srv.URL,
		APIKey:        "secret-key",
		Timeout:       timeout,
		RatePerSecond: 100,
	})
}

func requireOracleError(t *testing.T, err error, kind types.OracleErrorKind) *types.OracleError {
	t.Helper()
	var oerr *types.OracleError
	require.True(t, errors.As(err, &oerr), "expected *types.OracleError, got %T: %v", err, err)
	assert.Equal(t, kind, oerr.Kind)
	return oerr
}

func TestFetchSuccess(t *testing.T) {
	var query map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"status":"1","message":"OK","result":{"LastBlock":"1","SafeGasPrice":"5","ProposeGasPrice":"8.25","FastGasPrice":"12","suggestBaseFee":"4.9"}}`))
	}, time.Second)

	estimate, err := client.Fetch(context.Background(), types.ChainPolygon)
	require.NoError(t, err)
	assert.Equal(t, types.FeeEstimate{Low: 5, Medium: 8.25, High: 12}, estimate)

	assert.Equal(t, "137", query["chainid"])
	assert.Equal(t, "gastracker", query["module"])
	assert.Equal(t, "gasoracle", query["action"])
	assert.Equal(t, "secret-key", query["apikey"])
}

func TestFetchUnorderedTiersAreKept(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","message":"OK","result":{"SafeGasPrice":"9","ProposeGasPrice":"3","FastGasPrice":"7"}}`))
	}, time.Second)

	estimate, err := client.Fetch(context.Background(), types.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, 3.0, estimate.Current())
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		kind       types.OracleErrorKind
		reasonPart string
	}{
		{
			name:       "upstream error envelope",
			status:     http.StatusOK,
			body:       `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`,
			kind:       types.OracleUpstream,
			reasonPart: "NOTOK: Invalid API Key",
		},
		{
			name:       "rate limited envelope",
			status:     http.StatusOK,
			body:       `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`,
			kind:       types.OracleUpstream,
			reasonPart: "Max rate limit reached",
		},
		{
			name:       "non numeric tier",
			status:     http.StatusOK,
			body:       `{"status":"1","message":"OK","result":{"SafeGasPrice":"","ProposeGasPrice":"2","FastGasPrice":"3"}}`,
			kind:       types.OracleUpstream,
			reasonPart: "SafeGasPrice",
		},
		{
			name:       "negative tier",
			status:     http.StatusOK,
			body:       `{"status":"1","message":"OK","result":{"SafeGasPrice":"-1","ProposeGasPrice":"2","FastGasPrice":"3"}}`,
			kind:       types.OracleUpstream,
			reasonPart: "invalid tiers",
		},
		{
			name:       "malformed json",
			status:     http.StatusOK,
			body:       `<html>`,
			kind:       types.OracleUpstream,
			reasonPart: "malformed response",
		},
		{
			name:       "server error",
			status:     http.StatusBadGateway,
			body:       `bad gateway`,
			kind:       types.OracleNetwork,
			reasonPart: "502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, time.Second)

			estimate, err := client.Fetch(context.Background(), types.ChainEthereum)
			assert.Zero(t, estimate)
			oerr := requireOracleError(t, err, tt.kind)
			assert.Contains(t, oerr.Reason, tt.reasonPart)
			assert.Equal(t, types.ChainEthereum, oerr.Chain)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)

	start := time.Now()
	_, err := client.Fetch(context.Background(), types.ChainBSC)
	oerr := requireOracleError(t, err, types.OracleNetwork)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.False(t, strings.Contains(oerr.Reason, "secret-key"), "api key must not leak into errors")
}

func TestFetchUnknownChain(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls++ }, time.Second)

	_, err := client.Fetch(context.Background(), types.Chain("doge"))
	requireOracleError(t, err, types.OracleUpstream)
	assert.Zero(t, calls)
}
