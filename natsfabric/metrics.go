package natsfabric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus instruments for one connection. A nil
// *metrics disables collection; every method is nil-safe.
type metrics struct {
	connected     prometheus.Gauge
	reconnects    prometheus.Counter
	puts          prometheus.Counter
	putErrors     prometheus.Counter
	putDuration   prometheus.Histogram
	deliveries    prometheus.Counter
	droppedWrites prometheus.Counter
	subscriptions prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xnav",
			Subsystem: "fabric",
			Name:      "connected",
			Help:      "Whether the fabric connection is currently up (0 or 1).",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xnav",
			Subsystem: "fabric",
			Name:      "reconnects_total",
			Help:      "Total number of reconnections to the fabric server.",
		}),
		puts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xnav",
			Subsystem: "fabric",
			Name:      "puts_total",
			Help:      "Total number of successful topic writes.",
		}),
		putErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xnav",
			Subsystem: "fabric",
			Name:      "put_errors_total",
			Help:      "Total number of topic writes that failed.",
		}),
		putDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "xnav",
			Subsystem: "fabric",
			Name:      "put_duration_seconds",
			Help:      "Latency of topic writes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xnav",
			Subsystem: "fabric",
			Name:      "watch_deliveries_total",
			Help:      "Total number of value updates delivered by bucket watchers.",
		}),
		droppedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xnav",
			Subsystem: "fabric",
			Name:      "dropped_writes_total",
			Help:      "Total number of pending writes evicted from full queues.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xnav",
			Subsystem: "fabric",
			Name:      "active_subscriptions",
			Help:      "Number of distinct topic subscriptions.",
		}),
	}

	reg.MustRegister(
		m.connected,
		m.reconnects,
		m.puts,
		m.putErrors,
		m.putDuration,
		m.deliveries,
		m.droppedWrites,
		m.subscriptions,
	)
	return m
}

func (m *metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *metrics) reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *metrics) put(d time.Duration) {
	if m == nil {
		return
	}
	m.puts.Inc()
	m.putDuration.Observe(d.Seconds())
}

func (m *metrics) putError() {
	if m == nil {
		return
	}
	m.putErrors.Inc()
}

func (m *metrics) delivery() {
	if m == nil {
		return
	}
	m.deliveries.Inc()
}

func (m *metrics) droppedWrite() {
	if m == nil {
		return
	}
	m.droppedWrites.Inc()
}

func (m *metrics) subscriptionAdded() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}
