// Package stats tracks ingestion pipeline counters. The counters are kept
// twice: as plain atomics for the shutdown summary, and as Prometheus
// collectors for scraping.
package stats

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector accumulates ingestion outcomes.
type Collector struct {
	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64

	latencySumMs atomic.Int64
	latencyCount atomic.Int64

	outcomeTotal *prometheus.CounterVec
	latency      prometheus.Histogram
}

func NewCollector() *Collector {
	return newCollector(prometheus.DefaultRegisterer)
}

// NewCollectorForTesting registers the collectors on the given registry
// instead of the process-wide default.
func NewCollectorForTesting(reg prometheus.Registerer) *Collector {
	return newCollector(reg)
}

func newCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		outcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventsearch",
			Subsystem: "ingest",
			Name:      "messages_total",
			Help:      "Inbound messages by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventsearch",
			Subsystem: "ingest",
			Name:      "message_duration_seconds",
			Help:      "End-to-end processing time per message.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(c.outcomeTotal, c.latency)
	return c
}

// RecordProcessed counts a message persisted as a new event.
func (c *Collector) RecordProcessed(d time.Duration) {
	c.processed.Add(1)
	c.observe(d, "processed")
}

// RecordDuplicate counts a message short-circuited by the fingerprint check.
func (c *Collector) RecordDuplicate(d time.Duration) {
	c.duplicate.Add(1)
	c.observe(d, "duplicate")
}

// RecordFailed counts a message that exhausted its retries or was rejected.
func (c *Collector) RecordFailed(d time.Duration) {
	c.failed.Add(1)
	c.observe(d, "failed")
}

func (c *Collector) observe(d time.Duration, outcome string) {
	c.latencySumMs.Add(d.Milliseconds())
	c.latencyCount.Add(1)
	c.outcomeTotal.WithLabelValues(outcome).Inc()
	c.latency.Observe(d.Seconds())
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Processed    int64
	Duplicate    int64
	Failed       int64
	AvgLatencyMs int64
}

func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Processed: c.processed.Load(),
		Duplicate: c.duplicate.Load(),
		Failed:    c.failed.Load(),
	}
	if n := c.latencyCount.Load(); n > 0 {
		s.AvgLatencyMs = c.latencySumMs.Load() / n
	}
	return s
}

// LogSummary emits the run totals, typically on shutdown.
func (c *Collector) LogSummary() {
	s := c.Snapshot()
	slog.Info("ingestion summary",
		slog.Int64("processed", s.Processed),
		slog.Int64("duplicate", s.Duplicate),
		slog.Int64("failed", s.Failed),
		slog.Int64("avg_latency_ms", s.AvgLatencyMs))
}
