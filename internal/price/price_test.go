package price

import (
	"context"
	"testing"
	"time"

	"gas-alert-bot/internal/types"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTickers struct {
	calls  map[string]int
	prices map[string]float64
	err    error
}

func (f *fakeTickers) GetByID(coinID string, options *coinpaprika.TickersOptions) (*coinpaprika.Ticker, error) {
	f.calls[coinID]++
	if f.err != nil {
		return nil, f.err
	}
	ticker := &coinpaprika.Ticker{Quotes: map[string]coinpaprika.Quote{}}
	if p, ok := f.prices[coinID]; ok {
		ticker.Quotes["USD"] = coinpaprika.Quote{Price: &p}
	}
	return ticker, nil
}

func TestUSDPriceIsCached(t *testing.T) {
	fetcher := &fakeTickers{calls: map[string]int{}, prices: map[string]float64{"eth-ethereum": 3150.5}}
	tracker := NewTrackerWithFetcher(fetcher, time.Minute)

	for i := 0; i < 3; i++ {
		p, err := tracker.USDPrice(context.Background(), types.ChainEthereum)
		require.NoError(t, err)
		assert.Equal(t, 3150.5, p)
	}
	assert.Equal(t, 1, fetcher.calls["eth-ethereum"])
}

func TestUSDPriceExpires(t *testing.T) {
	fetcher := &fakeTickers{calls: map[string]int{}, prices: map[string]float64{"bnb-binance-coin": 600}}
	tracker := NewTrackerWithFetcher(fetcher, time.Nanosecond)

	_, err := tracker.USDPrice(context.Background(), types.ChainBSC)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = tracker.USDPrice(context.Background(), types.ChainBSC)
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls["bnb-binance-coin"])
}

func TestUSDPriceErrors(t *testing.T) {
	tracker := NewTrackerWithFetcher(&fakeTickers{calls: map[string]int{}, err: errors.New("429")}, time.Minute)
	_, err := tracker.USDPrice(context.Background(), types.ChainPolygon)
	assert.Error(t, err)

	tracker = NewTrackerWithFetcher(&fakeTickers{calls: map[string]int{}}, time.Minute)
	_, err = tracker.USDPrice(context.Background(), types.ChainPolygon)
	assert.Error(t, err, "missing USD quote")
}

type hangingTickers struct {
	release chan struct{}
}

func (h hangingTickers) GetByID(coinID string, options *coinpaprika.TickersOptions) (*coinpaprika.Ticker, error) {
	<-h.release
	return nil, errors.New("connection reset")
}

func TestUSDPriceGivesUpWhenContextExpires(t *testing.T) {
	fetcher := hangingTickers{release: make(chan struct{})}
	defer close(fetcher.release)
	tracker := NewTrackerWithFetcher(fetcher, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tracker.USDPrice(ctx, types.ChainEthereum)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}
