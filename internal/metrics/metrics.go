package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the occupancy backend.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ticks            prometheus.Counter
	ticksSkipped     prometheus.Counter
	fallbacks        prometheus.Counter
	writebackErrors  prometheus.Counter
	pollLatency      prometheus.Histogram
	subscribers      prometheus.Gauge
	messagesSent     prometheus.Counter
	messagesDropped  prometheus.Counter
	samplesIngested  *prometheus.CounterVec
	workoutRequests  *prometheus.CounterVec
	mirrorPublishErr *prometheus.CounterVec
}

// New creates and registers all collectors. A nil registerer uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_broadcast_ticks_total",
			Help: "Broadcast ticks executed.",
		}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_broadcast_ticks_skipped_total",
			Help: "Ticks skipped because the previous tick was still running.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_fallback_readings_total",
			Help: "Synthetic readings generated because the store was empty or unreachable.",
		}),
		writebackErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_fallback_writeback_errors_total",
			Help: "Synthetic readings that could not be written back to the store.",
		}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gym_store_poll_latency_seconds",
			Help:    "Latency of latest-reading queries against the store.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gym_live_subscribers",
			Help: "Currently connected live subscribers.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_live_messages_sent_total",
			Help: "Live messages queued for subscribers.",
		}),
		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_live_messages_dropped_total",
			Help: "Live messages dropped because a subscriber queue was full.",
		}),
		samplesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_samples_ingested_total",
			Help: "Device samples written to the store, by measurement.",
		}, []string{"measurement"}),
		workoutRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_workout_requests_total",
			Help: "Workout generation requests, by outcome.",
		}, []string{"outcome"}),
		mirrorPublishErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_mirror_publish_errors_total",
			Help: "Failed publishes to live mirrors, by mirror.",
		}, []string{"mirror"}),
	}

	reg.MustRegister(
		m.ticks, m.ticksSkipped, m.fallbacks, m.writebackErrors, m.pollLatency,
		m.subscribers, m.messagesSent, m.messagesDropped,
		m.samplesIngested, m.workoutRequests, m.mirrorPublishErr,
	)
	return m
}

func (m *Metrics) TickStarted() {
	if m != nil {
		m.ticks.Inc()
	}
}

func (m *Metrics) TickSkipped() {
	if m != nil {
		m.ticksSkipped.Inc()
	}
}

func (m *Metrics) FallbackUsed() {
	if m != nil {
		m.fallbacks.Inc()
	}
}

func (m *Metrics) WritebackFailed() {
	if m != nil {
		m.writebackErrors.Inc()
	}
}

func (m *Metrics) ObservePoll(seconds float64) {
	if m != nil {
		m.pollLatency.Observe(seconds)
	}
}

func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.subscribers.Set(float64(n))
	}
}

func (m *Metrics) MessageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

func (m *Metrics) MessageDropped() {
	if m != nil {
		m.messagesDropped.Inc()
	}
}

func (m *Metrics) SampleIngested(measurement string) {
	if m != nil {
		m.samplesIngested.WithLabelValues(measurement).Inc()
	}
}

func (m *Metrics) WorkoutRequest(outcome string) {
	if m != nil {
		m.workoutRequests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) MirrorFailed(mirror string) {
	if m != nil {
		m.mirrorPublishErr.WithLabelValues(mirror).Inc()
	}
}
