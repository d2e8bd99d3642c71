package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gas-alert-bot/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultEndpoint = "https://api.etherscan.io/v2/api"

// ClientConfig configuration of the fee oracle client
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// RatePerSecond caps requests across all chains; the free tier allows 5/s
	RatePerSecond float64
}

// Client fetches gas price tiers from the Etherscan gas oracle
type Client struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type gasOracleResult struct {
	SafeGasPrice    string `json:"SafeGasPrice"`
	ProposeGasPrice string `json:"ProposeGasPrice"`
	FastGasPrice    string `json:"FastGasPrice"`
}

func NewClient(c ClientConfig) *Client {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 4
	}

	return &Client{
		endpoint:   c.Endpoint,
		apiKey:     c.APIKey,
		timeout:    c.Timeout,
		httpClient: &http.Client{Timeout: c.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(c.RatePerSecond), 1),
	}
}

// Fetch returns the current fee estimate for chain. Every failure is a
// *types.OracleError; nothing is retried here.
func (c *Client) Fetch(ctx context.Context, chain types.Chain) (types.FeeEstimate, error) {
	if !chain.Valid() {
		return types.FeeEstimate{}, upstreamError(chain, "unsupported chain")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return types.FeeEstimate{}, networkError(chain, errors.Wrap(err, "rate limiter"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(chain), nil)
	if err != nil {
		return types.FeeEstimate{}, networkError(chain, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.FeeEstimate{}, networkError(chain, redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.FeeEstimate{}, networkError(chain, errors.Wrap(err, "failed to read response"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.FeeEstimate{}, &types.OracleError{
			Chain:  chain,
			Kind:   types.OracleNetwork,
			Reason: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	estimate, err := decode(chain, body)
	if err != nil {
		return types.FeeEstimate{}, err
	}

	log.Debugf("Gas oracle %s answered in %v: low=%f medium=%f high=%f",
		chain, time.Since(start), estimate.Low, estimate.Medium, estimate.High)
	return estimate, nil
}

func (c *Client) requestURL(chain types.Chain) string {
	params := url.Values{}
	params.Set("chainid", strconv.Itoa(chain.ChainID()))
	params.Set("module", "gastracker")
	params.Set("action", "gasoracle")
	params.Set("apikey", c.apiKey)

	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep + params.Encode()
}

func decode(chain types.Chain, body []byte) (types.FeeEstimate, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return types.FeeEstimate{}, upstreamError(chain, "malformed response: "+err.Error())
	}

	if env.Status != "1" {
		reason := env.Message
		var detail string
		if json.Unmarshal(env.Result, &detail) == nil && detail != "" {
			reason = reason + ": " + detail
		}
		if reason == "" {
			reason = "unknown error"
		}
		return types.FeeEstimate{}, upstreamError(chain, reason)
	}

	var result gasOracleResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return types.FeeEstimate{}, upstreamError(chain, "malformed result: "+err.Error())
	}

	var estimate types.FeeEstimate
	for _, f := range []struct {
		name  string
		raw   string
		field *float64
	}{
		{"SafeGasPrice", result.SafeGasPrice, &estimate.Low},
		{"ProposeGasPrice", result.ProposeGasPrice, &estimate.Medium},
		{"FastGasPrice", result.FastGasPrice, &estimate.High},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return types.FeeEstimate{}, upstreamError(chain, fmt.Sprintf("%s is not a number: %q", f.name, f.raw))
		}
		*f.field = v
	}

	if !estimate.Valid() {
		return types.FeeEstimate{}, upstreamError(chain, fmt.Sprintf("invalid tiers %+v", estimate))
	}
	return estimate, nil
}

func upstreamError(chain types.Chain, reason string) error {
	return &types.OracleError{Chain: chain, Kind: types.OracleUpstream, Reason: reason}
}

func networkError(chain types.Chain, err error) error {
	return &types.OracleError{Chain: chain, Kind: types.OracleNetwork, Reason: err.Error()}
}

// redact strips the API key from errors that embed the request URL
func redact(err error, apiKey string) error {
	if apiKey == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), apiKey, "***"))
}
