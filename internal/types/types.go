package types

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Chain identifies one of the monitored networks
type Chain string

const (
	ChainEthereum Chain = "eth"
	ChainBSC      Chain = "bsc"
	ChainPolygon  Chain = "polygon"
)

type chainInfo struct {
	name    string
	chainID int
	coinID  string
	symbol  string
	aliases []string
}

var chains = map[Chain]chainInfo{
	ChainEthereum: {name: "Ethereum", chainID: 1, coinID: "eth-ethereum", symbol: "ETH", aliases: []string{"ethereum", "ether"}},
	ChainBSC:      {name: "BNB Smart Chain", chainID: 56, coinID: "bnb-binance-coin", symbol: "BNB", aliases: []string{"bnb", "binance"}},
	ChainPolygon:  {name: "Polygon", chainID: 137, coinID: "matic-polygon", symbol: "POL", aliases: []string{"matic", "pol"}},
}

// Chains returns every supported chain in a stable order
func Chains() []Chain {
	return []Chain{ChainEthereum, ChainBSC, ChainPolygon}
}

// ParseChain resolves user input such as "ETH" or "matic" to a Chain
func ParseChain(s string) (Chain, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := chains[Chain(s)]; ok {
		return Chain(s), nil
	}
	for c, info := range chains {
		for _, alias := range info.aliases {
			if alias == s {
				return c, nil
			}
		}
	}
	return "", errors.Errorf("unsupported chain: %q", s)
}

func (c Chain) Valid() bool {
	_, ok := chains[c]
	return ok
}

func (c Chain) DisplayName() string {
	if info, ok := chains[c]; ok {
		return info.name
	}
	return string(c)
}

// ChainID is the EVM chain id used by the fee oracle
func (c Chain) ChainID() int {
	return chains[c].chainID
}

// NativeCoinID is the coinpaprika id of the coin gas is paid in
func (c Chain) NativeCoinID() string {
	return chains[c].coinID
}

func (c Chain) NativeSymbol() string {
	return chains[c].symbol
}

// Alert is a standing request to be notified once when a chain's fee drops
// to or below Threshold (Gwei).
type Alert struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	Chain     Chain     `json:"chain"`
	Threshold float64   `json:"threshold"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

// FeeEstimate holds the three oracle tiers in Gwei. The upstream does not
// guarantee Low <= Medium <= High.
type FeeEstimate struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// Current is the value alerts are compared against: the lowest tier.
func (e FeeEstimate) Current() float64 {
	return math.Min(e.Low, math.Min(e.Medium, e.High))
}

// Valid reports whether every tier is a finite, non-negative number
func (e FeeEstimate) Valid() bool {
	for _, v := range []float64{e.Low, e.Medium, e.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

// FeeResult is the outcome of one oracle fetch. Estimate is meaningless when
// Err is set.
type FeeResult struct {
	Chain     Chain
	Estimate  FeeEstimate
	Err       error
	FetchedAt time.Time
}

func (r FeeResult) OK() bool {
	return r.Err == nil
}

// FeeSnapshot is a persisted successful fetch, used for history charts
type FeeSnapshot struct {
	Chain      Chain
	Estimate   FeeEstimate
	ObservedAt time.Time
}
