package metrics

import (
	"context"
	"testing"

	"gas-alert-bot/internal/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	store, err := database.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	m := New(prometheus.NewRegistry())
	m.TicksTotal.Add(12)
	m.NotificationsDelivered.Add(3)
	m.OracleCalls.WithLabelValues("eth", "ok").Add(7)
	m.OracleCalls.WithLabelValues("bsc", "upstream").Inc()
	m.AlertsFired.WithLabelValues("eth").Add(2)

	require.NoError(t, m.Save(ctx, store))

	restored := New(prometheus.NewRegistry())
	require.NoError(t, restored.Load(ctx, store))

	assert.Equal(t, 12.0, testutil.ToFloat64(restored.TicksTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(restored.NotificationsDelivered))
	assert.Equal(t, 0.0, testutil.ToFloat64(restored.NotificationsFailed))
	assert.Equal(t, 7.0, testutil.ToFloat64(restored.OracleCalls.WithLabelValues("eth", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(restored.OracleCalls.WithLabelValues("bsc", "upstream")))
	assert.Equal(t, 2.0, testutil.ToFloat64(restored.AlertsFired.WithLabelValues("eth")))
}

func TestNewWithNilRegistererDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
