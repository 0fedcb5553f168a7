package mlatflow

import (
	"context"
	"fmt"
	"time"
)

// Flow builds a Runtime in three steps: Conf settles the correlation knobs,
// StreamIN says where station batches come from and StreamOUT where the
// groups go. Options edit a private copy of the configuration, which is
// validated again before the runtime is built.
type Flow struct {
	cfg  Config
	opts []RuntimeOption
}

// FlowOption adjusts correlation and queueing before the streams are described.
type FlowOption func(*Flow)

// StreamInOption picks a batch source or replaces the intake plumbing.
type StreamInOption func(*Flow)

// StreamOutOption adds a destination for eligible groups.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk and applies opts on top of it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from an in-memory Config. cfg itself is not
// modified.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: *cfg}
	f.cfg.Simulator.Stations = append([]SimulatorStation(nil), cfg.Simulator.Stations...)
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if err := f.settle(); err != nil {
		return nil, err
	}
	return f, nil
}

// Config returns the flow's copy of the configuration.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return &f.cfg
}

// Options appends raw RuntimeOption values.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies the sink options and builds the Runtime.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if err := f.settle(); err != nil {
		return nil, err
	}
	cfg := f.cfg
	return NewRuntime(&cfg, f.opts...)
}

// Run is StreamOUT followed by Runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func (f *Flow) settle() error {
	f.cfg.ApplyDefaults()
	if err := f.cfg.Validate(); err != nil {
		return fmt.Errorf("flow config: %w", err)
	}
	return nil
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) { f.appendOptions(opts...) }
}

// WithCorrelation replaces the window, stale age and station threshold. Zero
// fields fall back to their defaults.
func WithCorrelation(p Params) FlowOption {
	return func(f *Flow) { f.cfg.Correlation.Params = p }
}

// WithScanInterval sets how often the correlator scans the index.
func WithScanInterval(d time.Duration) FlowOption {
	return func(f *Flow) { f.cfg.Correlation.ScanInterval = d }
}

// WithQueuePolicy bounds the batch queue and picks block, drop or reject for
// when it is full.
func WithQueuePolicy(onFull string, maxLen int) FlowOption {
	return func(f *Flow) {
		f.cfg.Policy.OnQueueFull = onFull
		f.cfg.Policy.MaxQueueLen = maxLen
	}
}

// WithFlowObservability replaces the Prometheus and slog backend.
func WithFlowObservability(obs Observability) FlowOption {
	return func(f *Flow) {
		if obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamInListen moves the station listener to addr.
func StreamInListen(addr string) StreamInOption {
	return func(f *Flow) { f.cfg.Listen.Addr = addr }
}

// StreamInSimulator turns on synthetic stations alongside the listener.
func StreamInSimulator(sim SimulatorConfig) StreamInOption {
	return func(f *Flow) {
		sim.Enabled = true
		f.cfg.Simulator = sim
	}
}

// StreamInCollector adds a collector next to the station listener.
func StreamInCollector(col Collector) StreamInOption {
	return func(f *Flow) {
		if col != nil {
			f.appendOptions(WithCollector(col))
		}
	}
}

// StreamInCaptureDir records every accepted batch under dir for replay.
func StreamInCaptureDir(dir string) StreamInOption {
	return func(f *Flow) { f.cfg.Capture.Dir = dir }
}

// StreamInCapture lets callers bring their own capture implementation.
func StreamInCapture(c Capture) StreamInOption {
	return func(f *Flow) {
		if c != nil {
			f.appendOptions(WithCapture(c))
		}
	}
}

// StreamInQueue swaps the in-memory queue for a caller-provided implementation.
func StreamInQueue(q BatchQueue) StreamInOption {
	return func(f *Flow) {
		if q != nil {
			f.appendOptions(WithBatchQueue(q))
		}
	}
}

// StreamInIndex shares a caller-owned index with the runtime.
func StreamInIndex(idx *Index) StreamInOption {
	return func(f *Flow) {
		if idx != nil {
			f.appendOptions(WithIndex(idx))
		}
	}
}

// StreamOutSink adds a GroupSink.
func StreamOutSink(s GroupSink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.appendOptions(WithGroupSink(s))
		}
	}
}

// StreamOutCallback installs a sink that calls fn once per group.
func StreamOutCallback(name string, fn GroupHandler) StreamOutOption {
	return func(f *Flow) { f.appendOptions(WithGroupSink(NewCallbackSink(name, fn))) }
}

// StreamOutPostgres upserts groups into table; an empty table keeps the
// configured one.
func StreamOutPostgres(connString, table string) StreamOutOption {
	return func(f *Flow) {
		f.cfg.Postgres.ConnString = connString
		if table != "" {
			f.cfg.Postgres.Table = table
		}
	}
}

// StreamOutRedis publishes every group on channel; an empty channel keeps the
// configured one.
func StreamOutRedis(addr, channel string) StreamOutOption {
	return func(f *Flow) {
		f.cfg.Redis.Addr = addr
		if channel != "" {
			f.cfg.Redis.Channel = channel
		}
	}
}
