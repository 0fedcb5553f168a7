package mlatflow

import (
	"context"
	"io"
	"time"

	base "github.com/ghalamif/mlatflow/pkg/mlatflow"
)

// Re-exported errors for convenience.
var (
	ErrDecode            = base.ErrDecode
	ErrTransport         = base.ErrTransport
	ErrStationExists     = base.ErrStationExists
	ErrQueueFull         = base.ErrQueueFull
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrPublisherStopped  = base.ErrPublisherStopped
)

// Type aliases so consumers can import github.com/ghalamif/mlatflow directly.
type (
	Config            = base.Config
	CorrelationConfig = base.CorrelationConfig
	Params            = base.Params
	Policy            = base.Policy
	ListenConfig      = base.ListenConfig
	MetricsConfig     = base.MetricsConfig
	CaptureConfig     = base.CaptureConfig
	PostgresConfig    = base.PostgresConfig
	RedisConfig       = base.RedisConfig
	SimulatorConfig   = base.SimulatorConfig
	SimulatorStation  = base.SimulatorStation
	Position          = base.Position
	LogConfig         = base.LogConfig
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Runtime           = base.Runtime
	RuntimeOption     = base.RuntimeOption
	IndexView         = base.IndexView
	StationID         = base.StationID
	Payload           = base.Payload
	Stamp             = base.Stamp
	Report            = base.Report
	Batch             = base.Batch
	StationInfo       = base.StationInfo
	EligibleGroup     = base.EligibleGroup
	DecodeError       = base.DecodeError
	Index             = base.Index
	IndexStats        = base.IndexStats
	Collector         = base.Collector
	BatchQueue        = base.BatchQueue
	GroupSink         = base.GroupSink
	GroupHandler      = base.GroupHandler
	Capture           = base.Capture
	CaptureStats      = base.CaptureStats
	CaptureEntryID    = base.CaptureEntryID
	Observability     = base.Observability
	Field             = base.Field
	Publisher         = base.Publisher
	ReplayStats       = base.ReplayStats
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

func DefaultParams() Params {
	return base.DefaultParams()
}

func NewIndex(p Params) *Index {
	return base.NewIndex(p)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func WithCorrelation(p Params) FlowOption {
	return base.WithCorrelation(p)
}

func WithScanInterval(d time.Duration) FlowOption {
	return base.WithScanInterval(d)
}

func WithQueuePolicy(onFull string, maxLen int) FlowOption {
	return base.WithQueuePolicy(onFull, maxLen)
}

func WithFlowObservability(obs Observability) FlowOption {
	return base.WithFlowObservability(obs)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInQueue(q BatchQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInCapture(c Capture) StreamInOption {
	return base.StreamInCapture(c)
}

func StreamInIndex(idx *Index) StreamInOption {
	return base.StreamInIndex(idx)
}

func StreamInListen(addr string) StreamInOption {
	return base.StreamInListen(addr)
}

func StreamInSimulator(sim SimulatorConfig) StreamInOption {
	return base.StreamInSimulator(sim)
}

func StreamInCaptureDir(dir string) StreamInOption {
	return base.StreamInCaptureDir(dir)
}

func StreamOutSink(s GroupSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutPostgres(connString, table string) StreamOutOption {
	return base.StreamOutPostgres(connString, table)
}

func StreamOutRedis(addr, channel string) StreamOutOption {
	return base.StreamOutRedis(addr, channel)
}

func StreamOutCallback(name string, fn GroupHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithGroupSink(s GroupSink) RuntimeOption {
	return base.WithGroupSink(s)
}

func WithBatchQueue(q BatchQueue) RuntimeOption {
	return base.WithBatchQueue(q)
}

func WithCapture(c Capture) RuntimeOption {
	return base.WithCapture(c)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithIndex(idx *Index) RuntimeOption {
	return base.WithIndex(idx)
}

// Sink adapters.
func NewCallbackSink(name string, fn GroupHandler) GroupSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (GroupSink, <-chan []EligibleGroup, func()) {
	return base.NewChannelSink(name, buffer)
}

// In-process publisher.
func NewPublisher() *Publisher {
	return base.NewPublisher()
}

// Capture replay.
func OpenCapture(dir string) (Capture, error) {
	return base.OpenCapture(dir)
}

func Replay(ctx context.Context, c Capture, p Params, scanInterval time.Duration, out GroupSink) (ReplayStats, error) {
	return base.Replay(ctx, c, p, scanInterval, out)
}

func FormatGroup(w io.Writer, g EligibleGroup) error {
	return base.FormatGroup(w, g)
}
