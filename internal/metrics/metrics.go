// Package metrics holds the Prometheus counters for a conversion run.
// bioconv is a batch tool, so metrics are written to a node-exporter
// textfile at the end of a run instead of being served over HTTP.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons for LinesSkipped.
const (
	SkipComment = "comment"
	SkipShort   = "short"
)

// Metrics is a private registry with the run counters.
type Metrics struct {
	Registry *prometheus.Registry

	ItemsStored    *prometheus.CounterVec
	LinesSkipped   *prometheus.CounterVec
	FilesProcessed prometheus.Counter
	SQLStatements  prometheus.Counter
}

// New creates and registers the counters.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ItemsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bioconv",
			Name:      "items_stored_total",
			Help:      "Items handed to the item writer, by class.",
		}, []string{"class"}),
		LinesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bioconv",
			Name:      "lines_skipped_total",
			Help:      "Input lines ignored by converters, by reason.",
		}, []string{"reason"}),
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bioconv",
			Name:      "files_processed_total",
			Help:      "Input files fully processed.",
		}),
		SQLStatements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bioconv",
			Name:      "sql_statements_total",
			Help:      "Post-processing SQL statements executed.",
		}),
	}
	m.Registry.MustRegister(m.ItemsStored, m.LinesSkipped, m.FilesProcessed, m.SQLStatements)
	return m
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
