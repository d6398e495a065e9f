// Package observability wires the Prometheus registry of a run and exports it
// in the node exporter textfile format.
package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/sourcefilter/internal/logger"
	"github.com/tphakala/sourcefilter/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Rejection *metrics.RejectionMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	rejectionMetrics, err := metrics.NewRejectionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create rejection metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Rejection: rejectionMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all collected metrics to path, creating its directory.
// The file is replaced atomically so a scraping collector never sees a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	getLogger().Debug("metrics textfile written", logger.String("path", path))
	return nil
}
