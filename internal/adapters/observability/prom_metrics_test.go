package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromObsMetrics(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	var buf bytes.Buffer
	obs := NewPromObs(NewLogger(&buf, "json", "info"))

	obs.IncCounter("mlat_reports_ingested_total", 5)
	if got := testutil.ToFloat64(obs.counters["mlat_reports_ingested_total"]); got != 5 {
		t.Fatalf("expected ingested counter 5, got %f", got)
	}

	obs.IncCounter("mlat_queue_dropped_total", 2)
	if got := testutil.ToFloat64(obs.counters["mlat_queue_dropped_total"]); got != 2 {
		t.Fatalf("expected queue drop counter 2, got %f", got)
	}

	obs.SetGauge("mlat_index_payloads", 42)
	if got := testutil.ToFloat64(obs.gauges["mlat_index_payloads"]); got != 42 {
		t.Fatalf("expected payload gauge 42, got %f", got)
	}

	obs.ObserveLatency("mlat_scan_duration_seconds", 0.0005)
	hCollector := obs.histos["mlat_scan_duration_seconds"].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected scan histogram to record 1 sample, got %d", samples)
	}

	obs.RecordRejected("alpha", errors.New("frac_secs out of range"))
	if got := testutil.ToFloat64(obs.counters["mlat_batches_rejected_total"]); got != 1 {
		t.Fatalf("expected rejected counter 1, got %f", got)
	}
	if !strings.Contains(buf.String(), `"station":"alpha"`) {
		t.Fatalf("expected rejection to be logged with station, got %s", buf.String())
	}

	obs.IncCounter("unknown_metric", 1)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestNewPromObsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObsWithRegisterer(nil, reg)
	obs.IncCounter("mlat_groups_emitted_total", 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() == "mlat_groups_emitted_total" {
			found = mf.GetMetric()[0].GetCounter().GetValue() == 3
		}
	}
	if !found {
		t.Fatalf("expected mlat_groups_emitted_total=3 in private registry")
	}
}
