package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// Intake moves batches from collectors through the optional capture log into
// the bounded queue. It is the only writer of the queue.
type Intake struct {
	cols    []ports.Collector
	capture ports.Capture
	q       ports.BatchQueue
	pol     ports.Policy
	obs     ports.Observability

	ch      chan *domain.Batch
	stop    chan struct{}
	expired chan struct{} // closed drainGrace after Stop; blocked enqueues give up
	done    chan struct{}
	once    sync.Once

	captureFull bool
}

// StartIntake starts every collector and the forwarding goroutine. capture may
// be nil. If a collector fails to start, the ones already started are stopped.
func StartIntake(capture ports.Capture, q ports.BatchQueue, pol ports.Policy, obs ports.Observability, cols ...ports.Collector) (*Intake, error) {
	in := &Intake{
		cols:    cols,
		capture: capture,
		q:       q,
		pol:     pol,
		obs:     obs,
		ch:      make(chan *domain.Batch, pol.MaxQueueLen),
		stop:    make(chan struct{}),
		expired: make(chan struct{}),
		done:    make(chan struct{}),
	}

	for i, col := range cols {
		if err := col.Start(in.ch); err != nil {
			for _, started := range cols[:i] {
				_ = started.Stop()
			}
			return nil, fmt.Errorf("start collector: %w", err)
		}
	}

	go in.run()
	return in, nil
}

// drainGrace bounds how long a blocking policy may wait for queue space while
// Stop flushes the channel.
const drainGrace = 2 * time.Second

func (in *Intake) run() {
	defer close(in.done)
	for {
		select {
		case <-in.stop:
			in.drain()
			return
		case b := <-in.ch:
			in.handle(b)
		}
	}
}

// drain forwards whatever the collectors delivered before they stopped.
func (in *Intake) drain() {
	for {
		select {
		case b := <-in.ch:
			in.handle(b)
		default:
			return
		}
	}
}

func (in *Intake) handle(b *domain.Batch) {
	if b == nil {
		return
	}
	in.record(b)

	if !enqueueWithPolicy(in.q, b, in.pol, in.obs, in.expired) {
		in.obs.IncCounter("mlat_queue_dropped_total", 1)
	}
	in.obs.SetGauge("mlat_queue_length", float64(in.q.Len()))
}

func (in *Intake) record(b *domain.Batch) {
	if in.capture == nil {
		return
	}
	stats := in.capture.Stats()
	if in.pol.MaxCaptureSizeBytes > 0 && stats.SizeBytes >= in.pol.MaxCaptureSizeBytes {
		if !in.captureFull {
			in.captureFull = true
			in.obs.LogError("capture_full", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, in.pol.MaxCaptureSizeBytes))
		}
		return
	}
	if _, err := in.capture.Append(b); err != nil {
		in.obs.LogCritical("capture_append_failed", err, ports.Field{Key: "station", Value: string(b.Station)})
		return
	}
	if f, ok := in.capture.(flusher); ok && len(in.ch) == 0 {
		if err := f.Flush(); err != nil {
			in.obs.LogError("capture_flush_failed", err)
		}
	}
	in.obs.SetGauge("mlat_capture_size_bytes", float64(in.capture.Stats().SizeBytes))
}

// flusher is implemented by captures that buffer writes; they are flushed
// whenever the intake catches up.
type flusher interface {
	Flush() error
}

// Stop stops the collectors and then the forwarding goroutine. Batches still
// buffered in the channel are forwarded to the queue first; a blocking policy
// waits at most drainGrace for space before the rest count as dropped.
func (in *Intake) Stop() error {
	var first error
	in.once.Do(func() {
		for _, col := range in.cols {
			if err := col.Stop(); err != nil && first == nil {
				first = err
			}
		}
		grace := time.AfterFunc(drainGrace, func() { close(in.expired) })
		close(in.stop)
		<-in.done
		grace.Stop()
	})
	return first
}

func enqueueWithPolicy(q ports.BatchQueue, b *domain.Batch, pol ports.Policy, obs ports.Observability, stop <-chan struct{}) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(b); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			select {
			case <-stop:
				return false
			case <-time.After(sleep):
			}
		case "drop":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
				ports.Field{Key: "station", Value: string(b.Station)})
			return false
		case "reject":
			obs.LogError("queue_full_reject", fmt.Errorf("%w: capacity %d", domain.ErrQueueFull, pol.MaxQueueLen),
				ports.Field{Key: "station", Value: string(b.Station)})
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
