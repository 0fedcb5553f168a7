package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ghalamif/mlatflow/internal/adapters/session"
	"github.com/ghalamif/mlatflow/internal/adapters/simulator"
	"github.com/ghalamif/mlatflow/internal/correlate"
	"github.com/ghalamif/mlatflow/internal/ports"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Correlation CorrelationConfig `yaml:"correlation"`
	Policy      ports.Policy      `yaml:"policy"`
	Listen      session.Config    `yaml:"listen"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Capture     CaptureConfig     `yaml:"capture"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Simulator   simulator.Config  `yaml:"simulator"`
	Log         LogConfig         `yaml:"log"`
}

type CorrelationConfig struct {
	correlate.Params `yaml:",inline"`
	ScanInterval     time.Duration `yaml:"scan_interval"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// CaptureConfig enables the on-disk record of accepted batches when Dir is set.
type CaptureConfig struct {
	Dir string `yaml:"dir"`
}

// PostgresConfig enables the group table sink when ConnString is set.
type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

// RedisConfig enables the pub/sub sink when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	c.Correlation.Params.ApplyDefaults()
	if c.Correlation.ScanInterval == 0 {
		c.Correlation.ScanInterval = 300 * time.Millisecond
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 512
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.MaxCaptureSizeBytes == 0 {
		c.Policy.MaxCaptureSizeBytes = 1 << 30
	}
	c.Listen.ApplyDefaults()
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Postgres.Table == "" {
		c.Postgres.Table = "mlat_groups"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "mlat:groups"
	}
	if c.Simulator.Enabled {
		c.Simulator.ApplyDefaults()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	if err := c.Correlation.Params.Validate(); err != nil {
		return fmt.Errorf("correlation config: %w", err)
	}
	if c.Correlation.ScanInterval <= 0 {
		return fmt.Errorf("correlation.scan_interval must be > 0")
	}
	switch c.Policy.OnQueueFull {
	case "block", "drop", "reject":
	default:
		return fmt.Errorf("policy.on_queue_full must be block, drop or reject, got %q", c.Policy.OnQueueFull)
	}
	if c.Policy.MaxQueueLen < 1 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if err := c.Listen.Validate(); err != nil {
		return fmt.Errorf("listen config: %w", err)
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.Simulator.Enabled {
		if err := c.Simulator.Validate(); err != nil {
			return fmt.Errorf("simulator config: %w", err)
		}
	}
	if strings.ContainsAny(c.Postgres.Table, " ;\"'") {
		return fmt.Errorf("postgres.table %q is not a plain identifier", c.Postgres.Table)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}
