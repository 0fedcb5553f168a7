package mlatflow

import (
	"github.com/ghalamif/mlatflow/internal/adapters/session"
	"github.com/ghalamif/mlatflow/internal/adapters/simulator"
	"github.com/ghalamif/mlatflow/internal/app/config"
	"github.com/ghalamif/mlatflow/internal/correlate"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// CorrelationConfig holds the grouping parameters and scan cadence.
	CorrelationConfig = config.CorrelationConfig
	// Params tunes the window, the stale age and the station threshold.
	Params = correlate.Params
	// Policy controls queue thresholds and the capture size cap.
	Policy = ports.Policy
	// ListenConfig configures the station listener.
	ListenConfig = session.Config
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// CaptureConfig configures the on-disk batch capture.
	CaptureConfig = config.CaptureConfig
	// PostgresConfig configures the group table sink.
	PostgresConfig = config.PostgresConfig
	// RedisConfig configures the pub/sub sink.
	RedisConfig = config.RedisConfig
	// SimulatorConfig configures the synthetic station collector.
	SimulatorConfig = simulator.Config
	// SimulatorStation is one synthetic receiver.
	SimulatorStation = simulator.StationConfig
	// Position is a geodetic point used by the simulator.
	Position = simulator.Position
	// LogConfig selects the slog handler and level.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig reads YAML from memory, applying defaults and validation.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig returns a configuration with every default applied and no
// optional sink enabled.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// DefaultParams returns the standard correlation parameters.
func DefaultParams() Params {
	return correlate.DefaultParams()
}
