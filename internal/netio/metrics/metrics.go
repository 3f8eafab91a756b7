// Package metrics exposes the "Observable counters" set from spec.md §6 as
// prometheus collectors registered against an injected Registerer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter/gauge the networking core publishes. A
// single instance is constructed per server or client process and threaded
// into the components that update it.
type Metrics struct {
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter

	ValidationFailures *prometheus.CounterVec // label: cause

	RateLimitDropped  *prometheus.CounterVec // label: category
	AbuseEventsTotal  prometheus.Counter

	InputsReceived prometheus.Counter
	InputsAccepted prometheus.Counter
	InputsRejected prometheus.Counter

	SnapshotChunksReceived prometheus.Counter
	SnapshotChunksTotal    prometheus.Gauge

	LastProcessedTick prometheus.Gauge
	SmoothedRTTMillis prometheus.Gauge
	TimeoutLevel      prometheus.Gauge
}

// New constructs and registers every collector against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer) keeps
// tests hermetic.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := prometheus.WrapRegistererWithPrefix(namespace+"_", reg)

	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_sent_total", Help: "Total messages sent.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_received_total", Help: "Total messages received.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bytes_sent_total", Help: "Total bytes sent.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bytes_received_total", Help: "Total bytes received.",
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validation_failures_total", Help: "Validation failures by cause.",
		}, []string{"cause"}),
		RateLimitDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_dropped_total", Help: "Inputs silently dropped by rate category.",
		}, []string{"category"}),
		AbuseEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "abuse_events_total", Help: "Abuse-threshold crossings.",
		}),
		InputsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inputs_received_total", Help: "Inputs received by the input handler.",
		}),
		InputsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inputs_accepted_total", Help: "Inputs accepted and applied.",
		}),
		InputsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inputs_rejected_total", Help: "Inputs rejected by validation.",
		}),
		SnapshotChunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_chunks_received_total", Help: "Snapshot chunks received by a client.",
		}),
		SnapshotChunksTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_chunks_total", Help: "Chunk count of the in-progress snapshot.",
		}),
		LastProcessedTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "last_processed_tick", Help: "Highest tick fully applied.",
		}),
		SmoothedRTTMillis: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smoothed_rtt_milliseconds", Help: "EWMA-smoothed round-trip time.",
		}),
		TimeoutLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timeout_level", Help: "Client connection timeout severity (0=None..3=FullUI).",
		}),
	}

	factory.MustRegister(
		m.MessagesSent, m.MessagesReceived, m.BytesSent, m.BytesReceived,
		m.ValidationFailures, m.RateLimitDropped, m.AbuseEventsTotal,
		m.InputsReceived, m.InputsAccepted, m.InputsRejected,
		m.SnapshotChunksReceived, m.SnapshotChunksTotal,
		m.LastProcessedTick, m.SmoothedRTTMillis, m.TimeoutLevel,
	)
	return m
}
