// Package metrics provides Prometheus metrics for tap-monday.
//
// # Basic Usage
//
//	// Count emitted records
//	metrics.RecordsEmitted.WithLabelValues("boards").Inc()
//
//	// Time a request
//	timer := metrics.NewTimer()
//	resp, err := client.Do(req)
//	metrics.RequestDuration.WithLabelValues("boards", "200").Observe(timer.Stop().Seconds())
//
// Metrics are registered on the default registry and exposed by the CLI when
// --metrics-addr is set.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsEmitted counts records handed to the destination.
	// Labels: stream
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_monday_records_emitted_total",
			Help: "Total number of records emitted",
		},
		[]string{"stream"},
	)

	// PagesFetched counts API pages requested.
	// Labels: stream
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_monday_pages_fetched_total",
			Help: "Total number of API pages fetched",
		},
		[]string{"stream"},
	)

	// RequestDuration tracks API request latency in seconds.
	// Labels: operation (stream name), status (HTTP status code or "error")
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tap_monday_request_duration_seconds",
			Help:    "Monday API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// StreamErrors counts streams aborted by an error.
	// Labels: stream, type (error category)
	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_monday_stream_errors_total",
			Help: "Total number of streams aborted by an error",
		},
		[]string{"stream", "type"},
	)

	// MessagesWritten counts Singer messages written.
	// Labels: type (SCHEMA, RECORD, STATE)
	MessagesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_monday_messages_written_total",
			Help: "Total number of Singer messages written",
		},
		[]string{"type"},
	)
)

// Handler returns the HTTP handler serving the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Collector keeps per-component counters for Metrics() reporting.
type Collector struct {
	name      string
	startTime time.Time
	mu        sync.RWMutex
	counters  map[string]int64
}

// NewCollector creates a new metrics collector for a component.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
		counters:  make(map[string]int64),
	}
}

// Add increments a named counter
func (c *Collector) Add(name string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += delta
}

// Get returns the value of a named counter
func (c *Collector) Get(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// GetAll returns all current metric values
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := map[string]interface{}{
		"component":  c.name,
		"start_time": c.startTime,
		"uptime":     time.Since(c.startTime).Seconds(),
	}
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Timer measures elapsed time
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
