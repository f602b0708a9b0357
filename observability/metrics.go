// Package observability exposes the Prometheus metrics of the messaging core.
// Every method is safe on a nil *Metrics so components can run without metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Outcome string

const (
	Delivered  Outcome = "delivered"
	Offline    Outcome = "offline"
	Dropped    Outcome = "dropped"
	StoreError Outcome = "store_error"
	FileError  Outcome = "attachment_error"
)

type Metrics struct {
	connections       prometheus.Gauge
	onlineUsers       prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec
	messages          *prometheus.CounterVec
	routeLatency      prometheus.Histogram
	broadcasts        prometheus.Counter
	heartbeatTimeouts prometheus.Counter
	deliveryFailures  prometheus.Counter
	processRSS        prometheus.Gauge
	processCPU        prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Current number of live connections, anonymous ones included.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Current number of distinct online users.",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Accepted connections grouped by authentication result.",
		}, []string{"auth"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_routed_total",
			Help: "Inbound messages grouped by routing outcome.",
		}, []string{"outcome"}),
		routeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_route_latency_seconds",
			Help:    "Time spent persisting and delivering one message.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_presence_broadcasts_total",
			Help: "Full presence broadcasts sent.",
		}),
		heartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_heartbeat_timeouts_total",
			Help: "Connections torn down because no pong arrived in time.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Frames that could not be pushed to a live connection.",
		}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_process_rss_bytes",
			Help: "Resident memory of the server process.",
		}),
		processCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_process_cpu_percent",
			Help: "CPU usage of the server process.",
		}),
	}

	reg.MustRegister(
		m.connections,
		m.onlineUsers,
		m.connectionsTotal,
		m.messages,
		m.routeLatency,
		m.broadcasts,
		m.heartbeatTimeouts,
		m.deliveryFailures,
		m.processRSS,
		m.processCPU,
	)
	return m
}

func (m *Metrics) SetPopulation(connections, users int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(connections))
	m.onlineUsers.Set(float64(users))
}

func (m *Metrics) RecordConnection(authenticated bool) {
	if m == nil {
		return
	}
	label := "ok"
	if !authenticated {
		label = "failed"
	}
	m.connectionsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordRoute(outcome Outcome, dur time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(string(outcome)).Inc()
	m.routeLatency.Observe(dur.Seconds())
}

func (m *Metrics) RecordBroadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) RecordHeartbeatTimeout() {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Inc()
}

func (m *Metrics) RecordDeliveryFailure() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

func (m *Metrics) SetProcessStats(rss uint64, cpuPercent float64) {
	if m == nil {
		return
	}
	m.processRSS.Set(float64(rss))
	m.processCPU.Set(cpuPercent)
}
