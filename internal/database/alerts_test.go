package database

import (
	"context"
	"testing"
	"time"

	"gas-alert-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAlertValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		chain     types.Chain
		threshold float64
		wantErr   bool
	}{
		{name: "valid", chain: types.ChainEthereum, threshold: 12.5},
		{name: "sub unit", chain: types.ChainPolygon, threshold: 0.05},
		{name: "zero threshold", chain: types.ChainEthereum, threshold: 0, wantErr: true},
		{name: "negative threshold", chain: types.ChainBSC, threshold: -1, wantErr: true},
		{name: "unknown chain", chain: types.Chain("sol"), threshold: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, err := s.InsertAlert(ctx, 1, 100, tt.chain, tt.threshold)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, alert.ID)
			assert.False(t, alert.Notified)
			assert.Equal(t, tt.threshold, alert.Threshold)
		})
	}
}

func TestListActiveChains(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chains, err := s.ListActiveChains(ctx)
	require.NoError(t, err)
	assert.NotNil(t, chains)
	assert.Empty(t, chains)

	a1, err := s.InsertAlert(ctx, 1, 100, types.ChainEthereum, 10)
	require.NoError(t, err)
	_, err = s.InsertAlert(ctx, 1, 100, types.ChainEthereum, 20)
	require.NoError(t, err)
	a3, err := s.InsertAlert(ctx, 2, 200, types.ChainPolygon, 30)
	require.NoError(t, err)

	chains, err = s.ListActiveChains(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.Chain{types.ChainEthereum, types.ChainPolygon}, chains)

	require.NoError(t, s.MarkNotified(ctx, a3.ID))
	chains, err = s.ListActiveChains(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Chain{types.ChainEthereum}, chains)

	require.NoError(t, s.MarkNotified(ctx, a1.ID))
	chains, err = s.ListActiveChains(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Chain{types.ChainEthereum}, chains, "second eth alert is still outstanding")
}

func TestListOutstandingAlertsOrderedByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, c := range []types.Chain{types.ChainPolygon, types.ChainEthereum, types.ChainBSC} {
		a, err := s.InsertAlert(ctx, 7, 70, c, 3.5)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	require.NoError(t, s.MarkNotified(ctx, ids[1]))

	alerts, err := s.ListOutstandingAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, ids[0], alerts[0].ID)
	assert.Equal(t, ids[2], alerts[1].ID)
	assert.Equal(t, types.ChainPolygon, alerts[0].Chain)
	assert.Equal(t, int64(7), alerts[0].UserID)
	assert.Equal(t, int64(70), alerts[0].ChatID)
	assert.WithinDuration(t, time.Now(), alerts[0].CreatedAt, time.Minute)
}

func TestMarkNotifiedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.InsertAlert(ctx, 1, 100, types.ChainEthereum, 10)
	require.NoError(t, err)

	require.NoError(t, s.MarkNotified(ctx, a.ID))
	require.NoError(t, s.MarkNotified(ctx, a.ID))
	require.NoError(t, s.MarkNotified(ctx, 9999), "unknown ids are a no-op")

	alerts, err := s.ListAlertsByChat(ctx, 100)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Notified)

	outstanding, err := s.ListOutstandingAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, outstanding)
}

func TestDeleteAlertOnlyByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.InsertAlert(ctx, 1, 100, types.ChainBSC, 1)
	require.NoError(t, err)

	err = s.DeleteAlert(ctx, 200, a.ID)
	assert.ErrorIs(t, err, types.ErrAlertNotFound)

	require.NoError(t, s.DeleteAlert(ctx, 100, a.ID))
	err = s.DeleteAlert(ctx, 100, a.ID)
	assert.ErrorIs(t, err, types.ErrAlertNotFound)
}

func TestCountOutstandingByChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.InsertAlert(ctx, 1, 100, types.ChainBSC, 1)
	require.NoError(t, err)
	_, err = s.InsertAlert(ctx, 1, 100, types.ChainBSC, 2)
	require.NoError(t, err)
	_, err = s.InsertAlert(ctx, 2, 200, types.ChainBSC, 2)
	require.NoError(t, err)
	require.NoError(t, s.MarkNotified(ctx, a.ID))

	n, err := s.CountOutstandingByChat(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClosedStoreReportsUnavailable(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.ListActiveChains(context.Background())
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)

	_, err = s.ListOutstandingAlerts(context.Background())
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)

	err = s.MarkNotified(context.Background(), 1)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}
