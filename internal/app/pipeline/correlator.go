package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/mlatflow/internal/correlate"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// Correlator is the single goroutine that owns index mutation. Between scans
// it drains the queue every IdleSleep; on every scan tick it drains, scans,
// delivers the groups and prunes.
type Correlator struct {
	idx      *correlate.Index
	q        ports.BatchQueue
	sink     ports.GroupSink
	pol      ports.Policy
	interval time.Duration
	obs      ports.Observability
}

func NewCorrelator(idx *correlate.Index, q ports.BatchQueue, sink ports.GroupSink, pol ports.Policy, interval time.Duration, obs ports.Observability) *Correlator {
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	if pol.IdleSleep <= 0 {
		pol.IdleSleep = 5 * time.Millisecond
	}
	return &Correlator{idx: idx, q: q, sink: sink, pol: pol, interval: interval, obs: obs}
}

// Run blocks until ctx is cancelled. A final drain and scan run on the way
// out so groups already queued are not lost.
func (c *Correlator) Run(ctx context.Context) {
	scan := time.NewTicker(c.interval)
	defer scan.Stop()
	idle := time.NewTicker(c.pol.IdleSleep)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Step()
			return
		case <-scan.C:
			c.Step()
		case <-idle.C:
			c.Drain()
		}
	}
}

// Drain applies every queued batch to the index and returns the number of
// reports ingested. Malformed batches are rejected whole.
func (c *Correlator) Drain() int {
	total := 0
	for {
		batch := c.q.DequeueBatch(c.pol.MaxBatchSize)
		if len(batch) == 0 {
			break
		}
		for _, b := range batch {
			n, err := c.idx.Ingest(b)
			if err != nil {
				c.obs.RecordRejected(b.Station, err)
				continue
			}
			total += n
		}
	}
	if total > 0 {
		c.obs.IncCounter("mlat_reports_ingested_total", float64(total))
	}
	c.obs.SetGauge("mlat_queue_length", float64(c.q.Len()))
	return total
}

// Step runs one full correlation pass and returns how many groups were found.
func (c *Correlator) Step() int {
	c.Drain()

	start := time.Now()
	groups := c.idx.Scan()
	c.obs.ObserveLatency("mlat_scan_duration_seconds", time.Since(start).Seconds())

	if len(groups) > 0 && c.sink != nil {
		start = time.Now()
		if err := c.sink.WriteGroups(groups); err != nil {
			c.obs.IncCounter("mlat_sink_errors_total", 1)
			c.obs.LogError("sink_write_failed", err, ports.Field{Key: "sink", Value: c.sink.Name()})
		} else {
			c.obs.ObserveLatency("mlat_sink_latency_seconds", time.Since(start).Seconds())
			c.obs.IncCounter("mlat_groups_emitted_total", float64(len(groups)))
		}
	}

	if pruned := c.idx.Prune(); len(pruned) > 0 {
		c.obs.IncCounter("mlat_payloads_pruned_total", float64(len(pruned)))
	}

	stats := c.idx.Stats()
	c.obs.SetGauge("mlat_index_payloads", float64(stats.Payloads))
	c.obs.SetGauge("mlat_index_reports", float64(stats.Reports))
	if stats.LastReportTime > 0 {
		c.obs.SetGauge("mlat_last_report_time_seconds", stats.LastReportTime)
	}
	return len(groups)
}
