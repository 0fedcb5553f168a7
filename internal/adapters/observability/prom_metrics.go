package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the mlat metric set with the default registerer. A nil
// logger falls back to slog.Default().
func NewPromObs(logger *slog.Logger) *PromObs {
	return NewPromObsWithRegisterer(logger, prometheus.DefaultRegisterer)
}

func NewPromObsWithRegisterer(logger *slog.Logger, reg prometheus.Registerer) *PromObs {
	if logger == nil {
		logger = slog.Default()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		"mlat_batches_received_total": counter("mlat_batches_received_total", "Station batches decoded and handed to the pipeline."),
		"mlat_batches_rejected_total": counter("mlat_batches_rejected_total", "Station batches dropped as malformed."),
		"mlat_reports_ingested_total": counter("mlat_reports_ingested_total", "Reports inserted into the correlation index."),
		"mlat_groups_emitted_total":   counter("mlat_groups_emitted_total", "Eligible groups delivered to sinks."),
		"mlat_payloads_pruned_total":  counter("mlat_payloads_pruned_total", "Payload entries aged out of the index."),
		"mlat_queue_dropped_total":    counter("mlat_queue_dropped_total", "Batches lost due to queue backpressure policies."),
		"mlat_sink_errors_total":      counter("mlat_sink_errors_total", "Group sink write failures."),
	}
	gauges := map[string]prometheus.Gauge{
		"mlat_index_payloads":           gauge("mlat_index_payloads", "Payload entries currently indexed."),
		"mlat_index_reports":            gauge("mlat_index_reports", "Reports currently indexed."),
		"mlat_queue_length":             gauge("mlat_queue_length", "Batches buffered between sessions and the correlator."),
		"mlat_stations_connected":       gauge("mlat_stations_connected", "Stations with a live session."),
		"mlat_capture_size_bytes":       gauge("mlat_capture_size_bytes", "Size of the batch capture log on disk."),
		"mlat_last_report_time_seconds": gauge("mlat_last_report_time_seconds", "Newest report timestamp seen, used as the prune clock."),
	}
	scan := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mlat_scan_duration_seconds",
		Help:    "Time spent holding the index for one scan pass.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
	})
	sinkLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mlat_sink_latency_seconds",
		Help:    "Time to deliver one scan's groups to a sink.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	collectors := []prometheus.Collector{scan, sinkLatency}
	for _, c := range counters {
		collectors = append(collectors, c)
	}
	for _, g := range gauges {
		collectors = append(collectors, g)
	}
	reg.MustRegister(collectors...)

	return &PromObs{
		logger:   logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			"mlat_scan_duration_seconds": scan,
			"mlat_sink_latency_seconds":  sinkLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), "error", err)...)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), "error", err, "critical", true)...)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordRejected(station domain.StationID, err error) {
	p.IncCounter("mlat_batches_rejected_total", 1)
	if err != nil {
		p.logger.Warn("batch rejected", "station", string(station), "error", err)
	}
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
