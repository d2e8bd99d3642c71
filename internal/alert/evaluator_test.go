package alert

import (
	"testing"

	"gas-alert-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func ethAlert(id int64, threshold float64) types.Alert {
	return types.Alert{ID: id, UserID: id, ChatID: 100 + id, Chain: types.ChainEthereum, Threshold: threshold}
}

func okResult(chain types.Chain, low, medium, high float64) types.FeeResult {
	return types.FeeResult{Chain: chain, Estimate: types.FeeEstimate{Low: low, Medium: medium, High: high}}
}

func ids(alerts []types.Alert) []int64 {
	var out []int64
	for _, a := range alerts {
		out = append(out, a.ID)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		alerts   []types.Alert
		result   types.FeeResult
		expected []int64
	}{
		{
			name:     "threshold is inclusive and compared with the lowest tier",
			alerts:   []types.Alert{ethAlert(1, 8)},
			result:   okResult(types.ChainEthereum, 5, 8, 12),
			expected: []int64{1},
		},
		{
			name:     "exact tie fires",
			alerts:   []types.Alert{ethAlert(1, 5)},
			result:   okResult(types.ChainEthereum, 5, 8, 12),
			expected: []int64{1},
		},
		{
			name:     "only reached thresholds fire",
			alerts:   []types.Alert{ethAlert(1, 1.0), ethAlert(2, 2.0)},
			result:   okResult(types.ChainEthereum, 1.5, 1.5, 1.5),
			expected: []int64{2},
		},
		{
			name:     "unordered tiers use the numeric minimum",
			alerts:   []types.Alert{ethAlert(1, 3)},
			result:   okResult(types.ChainEthereum, 9, 3, 7),
			expected: []int64{1},
		},
		{
			name:     "all simultaneous alerts are returned",
			alerts:   []types.Alert{ethAlert(1, 10), ethAlert(2, 20), ethAlert(3, 30)},
			result:   okResult(types.ChainEthereum, 4, 5, 6),
			expected: []int64{1, 2, 3},
		},
		{
			name:   "notified alerts never fire",
			alerts: []types.Alert{{ID: 1, Chain: types.ChainEthereum, Threshold: 100, Notified: true}},
			result: okResult(types.ChainEthereum, 1, 1, 1),
		},
		{
			name:   "alerts of other chains are ignored",
			alerts: []types.Alert{{ID: 1, Chain: types.ChainBSC, Threshold: 100}},
			result: okResult(types.ChainEthereum, 1, 1, 1),
		},
		{
			name:   "fetch error never fires",
			alerts: []types.Alert{ethAlert(1, 1e9)},
			result: types.FeeResult{Chain: types.ChainEthereum, Err: errors.New("timeout")},
		},
		{
			name:   "zero value estimate with error is not treated as zero fee",
			alerts: []types.Alert{ethAlert(1, 0.001)},
			result: types.FeeResult{Chain: types.ChainEthereum, Err: &types.OracleError{Kind: types.OracleUpstream, Reason: "NOTOK"}},
		},
		{
			name:   "invalid estimate never fires",
			alerts: []types.Alert{ethAlert(1, 10)},
			result: okResult(types.ChainEthereum, -1, 2, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ids(Evaluate(tt.alerts, tt.result)))
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	alerts := []types.Alert{ethAlert(1, 1.0), ethAlert(2, 2.0), ethAlert(3, 3.0)}
	snapshot := append([]types.Alert(nil), alerts...)
	result := okResult(types.ChainEthereum, 2.5, 2, 4)

	first := Evaluate(alerts, result)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Evaluate(alerts, result))
	}
	assert.Equal(t, snapshot, alerts, "input must not be modified")
	assert.Equal(t, []int64{2, 3}, ids(first))
}
