// Package metrics holds the Prometheus collectors for session creation,
// websocket connections and streams. A nil *Collectors records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trajectory_replay"

// Collectors is the set of service metrics.
type Collectors struct {
	sessionsCreated prometheus.Counter
	parseFailures   *prometheus.CounterVec // reason
	parseDuration   prometheus.Histogram
	sessionsStored  prometheus.Gauge

	connections   prometheus.Gauge
	streams       *prometheus.CounterVec // outcome: completed, aborted, rejected
	activeStreams prometheus.Gauge
	framesSent    prometheus.Counter
	sendErrors    prometheus.Counter
}

// New creates and registers the collectors. A nil registerer disables metrics.
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		return nil, nil
	}
	c := &Collectors{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "created_total",
			Help: "Sessions parsed and stored.",
		}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "parse_failures_total",
			Help: "Session creations that failed, by reason.",
		}, []string{"reason"}),
		parseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "session", Name: "parse_duration_seconds",
			Help:    "Time to ingest and resample one session.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		sessionsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "stored",
			Help: "Sessions held in the registry.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "websocket", Name: "connections",
			Help: "Registered websocket connections.",
		}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "finished_total",
			Help: "Streams that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "active",
			Help: "Streams currently sending frames.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "frames_sent_total",
			Help: "Simulation frames delivered to clients.",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "websocket", Name: "send_errors_total",
			Help: "Failed websocket writes; each one unregisters its connection.",
		}),
	}
	for _, col := range []prometheus.Collector{
		c.sessionsCreated, c.parseFailures, c.parseDuration, c.sessionsStored,
		c.connections, c.streams, c.activeStreams, c.framesSent, c.sendErrors,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) SessionCreated(d time.Duration, stored int) {
	if c == nil {
		return
	}
	c.sessionsCreated.Inc()
	c.parseDuration.Observe(d.Seconds())
	c.sessionsStored.Set(float64(stored))
}

func (c *Collectors) ParseFailed(reason string) {
	if c == nil {
		return
	}
	c.parseFailures.WithLabelValues(reason).Inc()
}

func (c *Collectors) SetConnections(n int) {
	if c == nil {
		return
	}
	c.connections.Set(float64(n))
}

func (c *Collectors) StreamStarted() {
	if c == nil {
		return
	}
	c.activeStreams.Inc()
}

// StreamFinished records a terminal outcome. started reports whether the
// stream had entered STREAMING.
func (c *Collectors) StreamFinished(outcome string, started bool) {
	if c == nil {
		return
	}
	if started {
		c.activeStreams.Dec()
	}
	c.streams.WithLabelValues(outcome).Inc()
}

func (c *Collectors) FrameSent() {
	if c == nil {
		return
	}
	c.framesSent.Inc()
}

func (c *Collectors) SendError() {
	if c == nil {
		return
	}
	c.sendErrors.Inc()
}
