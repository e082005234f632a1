// Package metrics records the outcome of a run as Prometheus gauges and
// writes them for the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/pkg/comparison"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/reconciler"
)

const namespace = "bodymap"

// Recorder holds the metrics of one run in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	files        *prometheus.GaugeVec
	records      *prometheus.GaugeVec
	invalid      prometheus.Gauge
	measurements prometheus.Gauge
	groups       *prometheus.GaugeVec
	conflicts    prometheus.Gauge
	excluded     prometheus.Gauge
	fieldSources *prometheus.GaugeVec
	mismatches   *prometheus.GaugeVec
	weightMAE    prometheus.Gauge
	duration     prometheus.Gauge
	lastRun      prometheus.Gauge
}

// New creates a recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files",
			Help:      "Raw files seen by the last run, by ingestion status.",
		}, []string{"status"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records",
			Help:      "Raw records read by the last run, by source type.",
		}, []string{"source_type"}),
		invalid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consolidation",
			Name:      "invalid_records",
			Help:      "Raw records rejected before grouping.",
		}),
		measurements: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consolidation",
			Name:      "measurements",
			Help:      "Canonical measurements produced by the last run.",
		}),
		groups: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consolidation",
			Name:      "groups",
			Help:      "Candidate groups of the last run, by pairing outcome.",
		}, []string{"outcome"}),
		conflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consolidation",
			Name:      "conflicting_measurements",
			Help:      "Measurements with at least one conflicting field.",
		}),
		excluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consolidation",
			Name:      "excluded_groups",
			Help:      "Groups dropped because they could not be merged.",
		}),
		fieldSources: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consolidation",
			Name:      "field_sources",
			Help:      "Field values by how they were obtained.",
		}, []string{"field", "source"}),
		mismatches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "mismatches",
			Help:      "Matched pairs disagreeing on a field.",
		}, []string{"field"}),
		weightMAE: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "weight_mae_kg",
			Help:      "Mean absolute weight difference between matched pairs.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the consolidation step.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last completed run.",
		}),
	}

	r.registry.MustRegister(
		r.files, r.records, r.invalid, r.measurements, r.groups, r.conflicts,
		r.excluded, r.fieldSources, r.mismatches, r.weightMAE, r.duration, r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveBatch records the ingestion outcome.
func (r *Recorder) ObserveBatch(b *ingest.Batch) {
	if b == nil {
		return
	}
	for _, s := range []ingest.Status{ingest.StatusSuccess, ingest.StatusSkipped, ingest.StatusError} {
		r.files.WithLabelValues(string(s)).Set(float64(b.Count(s)))
	}
	counts := make(map[string]int)
	for _, rec := range b.Records {
		counts[rec.Kind.String()]++
	}
	for kind, n := range counts {
		r.records.WithLabelValues(kind).Set(float64(n))
	}
}

// ObserveConsolidation records the consolidation outcome.
func (r *Recorder) ObserveConsolidation(res *reconciler.Result) {
	if res == nil {
		return
	}
	stats := res.Metadata.Stats
	r.invalid.Set(float64(stats.InvalidRecords))
	r.measurements.Set(float64(len(res.Measurements)))
	r.groups.WithLabelValues("matched").Set(float64(stats.Matched))
	r.groups.WithLabelValues("csv_only").Set(float64(stats.TabularOnly))
	r.groups.WithLabelValues("fit_only").Set(float64(stats.BinaryOnly))
	r.conflicts.Set(float64(stats.Conflicts))
	r.excluded.Set(float64(stats.Excluded))
	r.duration.Set(res.Metadata.Duration.Seconds())

	r.fieldSources.Reset()
	for _, m := range res.Measurements {
		for field, src := range m.FieldSources {
			r.fieldSources.WithLabelValues(field, string(src)).Inc()
		}
	}
}

// ObserveComparison records the comparison outcome.
func (r *Recorder) ObserveComparison(results []*comparison.Result) {
	s := comparison.Summarize(results)
	r.mismatches.Reset()
	for field, n := range s.Mismatches {
		r.mismatches.WithLabelValues(field).Set(float64(n))
	}
	if s.WeightMAE != nil {
		r.weightMAE.Set(*s.WeightMAE)
	}
}

// MarkRun stamps the completion time of the run.
func (r *Recorder) MarkRun(at time.Time) {
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return errors.WrapIO("write", path, prometheus.WriteToTextfile(path, r.registry))
}
