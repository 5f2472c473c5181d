// Package metrics records client-side request and transfer counters.
//
// Each CLI invocation owns a private registry; nothing is served over HTTP.
// With --metrics-dump the registry is written in the Prometheus text
// exposition format when the command finishes.
package metrics

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Transfer directions.
const (
	Upload   = "upload"
	Download = "download"
)

// Transfer results.
const (
	ResultCopied  = "copied"
	ResultSkipped = "skipped"
	ResultResumed = "resumed"
	ResultFailed  = "failed"
)

// Metrics holds the collectors of one client.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transferBytes   *prometheus.CounterVec
	transferFiles   *prometheus.CounterVec
}

// New creates collectors registered in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apolo",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of platform API requests by method and status code",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "apolo",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Duration of platform API requests in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"method"},
		),
		transferBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apolo",
				Subsystem: "transfer",
				Name:      "bytes_total",
				Help:      "Bytes transferred by direction",
			},
			[]string{"direction"},
		),
		transferFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apolo",
				Subsystem: "transfer",
				Name:      "files_total",
				Help:      "Files processed by direction and result",
			},
			[]string{"direction", "result"},
		),
	}
	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.transferBytes, m.transferFiles)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one API round trip. A zero code means the request
// never got a response.
func (m *Metrics) ObserveRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	m.requestsTotal.WithLabelValues(method, label).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// AddTransferBytes records n transferred bytes.
func (m *Metrics) AddTransferBytes(direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.transferBytes.WithLabelValues(direction).Add(float64(n))
}

// CountFile records the outcome of one file transfer.
func (m *Metrics) CountFile(direction, result string) {
	if m == nil {
		return
	}
	m.transferFiles.WithLabelValues(direction, result).Inc()
}

// Write encodes the registry in text exposition format.
func (m *Metrics) Write(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Dump writes the registry to path.
func (m *Metrics) Dump(path string) error {
	// #nosec G304
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open metrics file: %w", err)
	}
	if err := m.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
