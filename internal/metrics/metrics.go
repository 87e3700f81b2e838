// Package metrics holds the Prometheus counters for API traffic, token
// refreshes, and uploads. A nil *Metrics is valid and records nothing, so
// callers never need to guard their observations.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pickoala"

// Upload outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeCanceled  = "canceled"
)

// Metrics is a set of counters on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	chunkRetries  prometheus.Counter
	chunksSkipped prometheus.Counter
	uploads       *prometheus.CounterVec
	bytesUploaded prometheus.Counter
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by method and HTTP status code.",
		}, []string{"method", "code"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Access token refreshes triggered by 401 responses, by result.",
		}, []string{"result"}),
		chunkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_retries_total",
			Help:      "Chunk upload attempts that were retried.",
		}),
		chunksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_skipped_total",
			Help:      "Chunks skipped because the server already held them.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Chunked uploads by outcome.",
		}, []string{"outcome"}),
		bytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Chunk payload bytes accepted by the server.",
		}),
	}

	m.registry.MustRegister(
		m.requests, m.refreshes, m.chunkRetries, m.chunksSkipped, m.uploads, m.bytesUploaded,
	)

	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// ObserveRequest counts one HTTP exchange.
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// ObserveRefresh counts one 401-triggered refresh.
func (m *Metrics) ObserveRefresh(ok bool) {
	if m == nil {
		return
	}

	result := "failure"
	if ok {
		result = "success"
	}

	m.refreshes.WithLabelValues(result).Inc()
}

// ObserveChunkRetry counts one retried chunk attempt.
func (m *Metrics) ObserveChunkRetry() {
	if m == nil {
		return
	}

	m.chunkRetries.Inc()
}

// ObserveChunkSkipped counts one chunk skipped on resume.
func (m *Metrics) ObserveChunkSkipped() {
	if m == nil {
		return
	}

	m.chunksSkipped.Inc()
}

// ObserveChunkBytes adds accepted chunk payload bytes.
func (m *Metrics) ObserveChunkBytes(n int) {
	if m == nil {
		return
	}

	m.bytesUploaded.Add(float64(n))
}

// ObserveUpload counts one finished upload by outcome.
func (m *Metrics) ObserveUpload(outcome string) {
	if m == nil {
		return
	}

	m.uploads.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes all metrics in the text exposition format, suitable
// for the node_exporter textfile collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}

	return nil
}
