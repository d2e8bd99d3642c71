package price

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gas-alert-bot/internal/types"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultTimeout = 3 * time.Second
)

// TickerFetcher looks up a coinpaprika ticker
type TickerFetcher interface {
	GetByID(coinID string, options *coinpaprika.TickersOptions) (*coinpaprika.Ticker, error)
}

type cacheItem struct {
	price      float64
	expiration time.Time
}

// Tracker returns native coin prices in USD, caching each for ttl so alert
// bursts do not hammer the API.
type Tracker struct {
	tickers TickerFetcher
	ttl     time.Duration

	mu    sync.Mutex
	cache map[types.Chain]cacheItem
}

// NewTracker creates a tracker backed by the coinpaprika API. Every request
// is cut off after timeout.
func NewTracker(apiProKey string, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	var client *coinpaprika.Client
	if apiProKey != "" {
		client = coinpaprika.NewClient(httpClient, coinpaprika.WithAPIKey(apiProKey))
	} else {
		client = coinpaprika.NewClient(httpClient)
	}
	return NewTrackerWithFetcher(clientFetcher{client: client}, DefaultTTL)
}

type clientFetcher struct {
	client *coinpaprika.Client
}

func (c clientFetcher) GetByID(coinID string, options *coinpaprika.TickersOptions) (*coinpaprika.Ticker, error) {
	return c.client.Tickers.GetByID(coinID, options)
}

func NewTrackerWithFetcher(tickers TickerFetcher, ttl time.Duration) *Tracker {
	return &Tracker{
		tickers: tickers,
		ttl:     ttl,
		cache:   make(map[types.Chain]cacheItem),
	}
}

type tickerResult struct {
	ticker *coinpaprika.Ticker
	err    error
}

// USDPrice returns the USD price of the coin gas is paid in on chain. The
// coinpaprika client takes no context, so the lookup is abandoned, not
// aborted, when ctx is done first.
func (t *Tracker) USDPrice(ctx context.Context, chain types.Chain) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	if item, found := t.cache[chain]; found && time.Now().Before(item.expiration) {
		t.mu.Unlock()
		return item.price, nil
	}
	t.mu.Unlock()

	coinID := chain.NativeCoinID()
	if coinID == "" {
		return 0, errors.Errorf("no native coin known for chain %q", chain)
	}

	done := make(chan tickerResult, 1)
	go func() {
		ticker, err := t.tickers.GetByID(coinID, &coinpaprika.TickersOptions{Quotes: "USD"})
		done <- tickerResult{ticker: ticker, err: err}
	}()

	var ticker *coinpaprika.Ticker
	select {
	case <-ctx.Done():
		return 0, errors.Wrapf(ctx.Err(), "ticker %s lookup abandoned", coinID)
	case res := <-done:
		if res.err != nil {
			return 0, errors.Wrapf(res.err, "could not fetch ticker %s", coinID)
		}
		ticker = res.ticker
	}

	quote, ok := ticker.Quotes["USD"]
	if !ok || quote.Price == nil || *quote.Price <= 0 {
		return 0, errors.Errorf("ticker %s has no USD price", coinID)
	}

	t.mu.Lock()
	t.cache[chain] = cacheItem{price: *quote.Price, expiration: time.Now().Add(t.ttl)}
	t.mu.Unlock()

	log.Debugf("Price of %s updated: $%f", coinID, *quote.Price)
	return *quote.Price, nil
}
