package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	req := require.New(t)
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.SetPopulation(3, 2)
	metrics.RecordConnection(true)
	metrics.RecordConnection(false)
	metrics.RecordRoute(Delivered, 10*time.Millisecond)
	metrics.RecordRoute(Offline, time.Millisecond)
	metrics.RecordBroadcast()
	metrics.RecordHeartbeatTimeout()

	req.Equal(float64(3), testutil.ToFloat64(metrics.connections))
	req.Equal(float64(2), testutil.ToFloat64(metrics.onlineUsers))
	req.Equal(float64(1), testutil.ToFloat64(metrics.connectionsTotal.WithLabelValues("failed")))
	req.Equal(float64(1), testutil.ToFloat64(metrics.messages.WithLabelValues(string(Delivered))))
	req.Equal(float64(1), testutil.ToFloat64(metrics.broadcasts))
	req.Equal(float64(1), testutil.ToFloat64(metrics.heartbeatTimeouts))
}

func TestMetrics_Nil_Is_Safe(t *testing.T) {
	var metrics *Metrics
	metrics.SetPopulation(1, 1)
	metrics.RecordRoute(Dropped, 0)
	metrics.RecordBroadcast()
	metrics.SetProcessStats(1, 1)
}
