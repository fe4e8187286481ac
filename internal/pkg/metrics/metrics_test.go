package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("attendance", reg)

	m.NotificationsSent.Inc()
	m.NotificationsFailed.WithLabelValues("invalid_token").Inc()
	m.StorageFailures.WithLabelValues("mark_sent").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["attendance_notifications_sent_total"])
	assert.True(t, names["attendance_notifications_failed_total"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsSent))
}

func TestNew_NilRegistererLeavesCollectorsUsable(t *testing.T) {
	m := New("attendance", nil)
	m.NotificationsRetried.Add(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.NotificationsRetried))
}
