package mlatflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ghalamif/mlatflow/internal/adapters/capture"
	"github.com/ghalamif/mlatflow/internal/adapters/observability"
	"github.com/ghalamif/mlatflow/internal/adapters/queue"
	"github.com/ghalamif/mlatflow/internal/adapters/session"
	"github.com/ghalamif/mlatflow/internal/adapters/simulator"
	"github.com/ghalamif/mlatflow/internal/adapters/sink"
	"github.com/ghalamif/mlatflow/internal/app/pipeline"
	"github.com/ghalamif/mlatflow/internal/correlate"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collectors    []Collector
	sinks         []GroupSink
	queue         BatchQueue
	capture       Capture
	observability Observability
	index         *Index
}

// WithCollector adds a collector next to the station listener (simulators,
// in-process publishers, recorded feeds).
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		if col != nil {
			o.collectors = append(o.collectors, col)
		}
	}
}

// WithGroupSink adds a destination for eligible groups.
func WithGroupSink(s GroupSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithBatchQueue injects a custom queue implementation.
func WithBatchQueue(q BatchQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithCapture lets callers bring their own capture implementation. The
// runtime does not close a capture it did not open.
func WithCapture(c Capture) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.capture = c
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithIndex shares an existing index, for callers that want to inspect it.
func WithIndex(idx *Index) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.index = idx
	}
}

// Runtime wires the station listener and extra collectors through the capture
// log and bounded queue into the correlator, and fans every scan's groups out
// to the configured sinks.
type Runtime struct {
	cfg    *Config
	obs    ports.Observability
	index  *correlate.Index
	queue  ports.BatchQueue
	reg    *session.Registry
	dir    ports.StationDirectory
	server *session.Server

	collectors []ports.Collector
	sinks      *sink.Fanout
	correlator *pipeline.Correlator

	capture     ports.Capture
	ownsCapture bool
	db          *sql.DB
	pgSink      *sink.PostgresSink
	rdb         *redis.Client

	ready atomic.Bool

	mu         sync.Mutex
	started    bool
	intake     *pipeline.Intake
	cancel     context.CancelFunc
	corrDone   chan struct{}
	metricsSrv *httpServer
}

// NewRuntime bootstraps the default adapters (TCP station listener, file
// capture, in-memory queue, broadcast plus optional Postgres and Redis sinks,
// Prometheus observability). RuntimeOption values add to or replace them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		logger := observability.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Level)
		obs = observability.NewPromObs(logger)
	}

	idx := overrides.index
	if idx == nil {
		idx = correlate.NewIndex(cfg.Correlation.Params)
	}

	q := overrides.queue
	if q == nil {
		q = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	rt := &Runtime{
		cfg:   cfg,
		obs:   obs,
		index: idx,
		queue: q,
	}

	if overrides.capture != nil {
		rt.capture = overrides.capture
	} else if cfg.Capture.Dir != "" {
		fl, err := capture.NewFileLog(cfg.Capture.Dir)
		if err != nil {
			return nil, fmt.Errorf("open capture: %w", err)
		}
		rt.capture = fl
		rt.ownsCapture = true
	}

	rt.reg = session.NewRegistry()
	rt.dir = rt.reg
	rt.reg.OnChange(func(n int) {
		obs.SetGauge("mlat_stations_connected", float64(n))
	})
	srv, err := session.NewServer(cfg.Listen, rt.reg, obs)
	if err != nil {
		rt.closeResources()
		return nil, fmt.Errorf("listen config: %w", err)
	}
	rt.server = srv
	rt.collectors = append(rt.collectors, srv)

	if cfg.Simulator.Enabled {
		sim, err := simulator.NewCollector(cfg.Simulator)
		if err != nil {
			rt.closeResources()
			return nil, fmt.Errorf("simulator: %w", err)
		}
		rt.collectors = append(rt.collectors, sim)
	}
	rt.collectors = append(rt.collectors, overrides.collectors...)

	sinks := []ports.GroupSink{session.NewBroadcastSink(rt.reg)}
	if cfg.Postgres.ConnString != "" {
		db, err := sql.Open("postgres", cfg.Postgres.ConnString)
		if err != nil {
			rt.closeResources()
			return nil, err
		}
		rt.db = db
		rt.pgSink = sink.NewPostgresSink(db, cfg.Postgres.Table)
		sinks = append(sinks, rt.pgSink)
	}
	if cfg.Redis.Addr != "" {
		rt.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sinks = append(sinks, sink.NewRedisSink(rt.rdb, cfg.Redis.Channel))
	}
	sinks = append(sinks, overrides.sinks...)
	rt.sinks = sink.NewFanout(sinks...)

	rt.correlator = pipeline.NewCorrelator(idx, q, rt.sinks, cfg.Policy, cfg.Correlation.ScanInterval, obs)
	return rt, nil
}

// Start prepares the sinks, starts the collectors, the correlator and the
// HTTP endpoints. It returns immediately; call Run to block on a context
// instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("runtime already started")
	}

	if r.pgSink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := r.pgSink.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	if r.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.rdb.Ping(ctx).Err(); err != nil {
			r.obs.LogError("redis_unreachable", err, ports.Field{Key: "addr", Value: r.cfg.Redis.Addr})
		}
		cancel()
	}

	intake, err := pipeline.StartIntake(r.capture, r.queue, r.cfg.Policy, r.obs, r.collectors...)
	if err != nil {
		return err
	}
	r.intake = intake

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.corrDone = make(chan struct{})
	go func() {
		defer close(r.corrDone)
		r.correlator.Run(ctx)
	}()

	if err := r.startHTTP(); err != nil {
		r.obs.LogError("metrics_listen_failed", err, ports.Field{Key: "addr", Value: r.cfg.Metrics.Addr})
	}

	r.started = true
	r.ready.Store(true)
	r.obs.LogInfo("runtime_started",
		ports.Field{Key: "listen", Value: r.StationAddr()},
		ports.Field{Key: "sinks", Value: len(r.sinks.Sinks())},
		ports.Field{Key: "collectors", Value: len(r.collectors)})
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the collectors, lets the correlator run one final scan and
// then releases the HTTP server, capture log and sink connections.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	r.ready.Store(false)

	if r.intake != nil {
		if err := r.intake.Stop(); err != nil {
			errs = append(errs, err)
		}
		r.intake = nil
	}

	if r.cancel != nil {
		r.cancel()
		select {
		case <-r.corrDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("correlator: %w", ctx.Err()))
		}
		r.cancel = nil
	}

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		r.metricsSrv = nil
	}

	if err := r.closeResources(); err != nil {
		errs = append(errs, err)
	}
	r.started = false

	return errors.Join(errs...)
}

func (r *Runtime) closeResources() error {
	var errs []error
	if r.capture != nil && r.ownsCapture {
		if err := r.capture.Close(); err != nil {
			errs = append(errs, err)
		}
		r.capture = nil
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.db = nil
	}
	if r.rdb != nil {
		if err := r.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
		r.rdb = nil
	}
	return errors.Join(errs...)
}

// StationAddr is the bound station listener address, or "" before Start.
func (r *Runtime) StationAddr() string {
	if a := r.server.Addr(); a != nil {
		return a.String()
	}
	return ""
}

// MetricsAddr is the bound metrics address, or "" when not serving.
func (r *Runtime) MetricsAddr() string {
	if r.metricsSrv == nil || r.metricsSrv.addr == nil {
		return ""
	}
	return r.metricsSrv.addr.String()
}

// Index exposes the live index for read-only inspection.
func (r *Runtime) Index() *Index { return r.index }

// Stations lists the currently connected stations.
func (r *Runtime) Stations() []StationInfo { return r.dir.Stations() }

// Ready reports whether the runtime is serving.
func (r *Runtime) Ready() bool { return r.ready.Load() }
