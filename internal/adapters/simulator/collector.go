// Package simulator produces synthetic station batches for a moving emitter
// observed by a fixed set of receivers, for exercising the correlator without
// real hardware.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

type StationConfig struct {
	Name     string `yaml:"name"`
	Position `yaml:",inline"`
}

type Config struct {
	Enabled         bool            `yaml:"enabled"`
	Stations        []StationConfig `yaml:"stations"`
	Emitter         Position        `yaml:"emitter"`
	EmitterSpeed    float64         `yaml:"emitter_speed_mps"`
	Interval        time.Duration   `yaml:"interval"`
	PayloadsPerTick int             `yaml:"payloads_per_tick"`
	JitterSeconds   float64         `yaml:"jitter_seconds"`
	DropRate        float64         `yaml:"drop_rate"`
	Seed            int64           `yaml:"seed"`
}

func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.PayloadsPerTick <= 0 {
		c.PayloadsPerTick = 1
	}
	if c.JitterSeconds < 0 {
		c.JitterSeconds = 0
	}
}

func (c *Config) Validate() error {
	if len(c.Stations) < 2 {
		return errors.New("at least two stations must be configured")
	}
	seen := make(map[string]struct{}, len(c.Stations))
	for _, st := range c.Stations {
		if st.Name == "" {
			return errors.New("station name is required")
		}
		if _, dup := seen[st.Name]; dup {
			return fmt.Errorf("duplicate station %q", st.Name)
		}
		seen[st.Name] = struct{}{}
	}
	if c.DropRate < 0 || c.DropRate >= 1 {
		return errors.New("drop_rate must be in [0,1)")
	}
	return nil
}

// Collector emits one batch per station on every tick. Each tick the emitter
// transmits PayloadsPerTick random payloads; each station timestamps them at
// emission time plus propagation delay plus Gaussian jitter.
type Collector struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	emitter Position
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewCollector(cfg Config) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Collector{
		cfg:     cfg,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(seed)),
		emitter: cfg.Emitter,
	}, nil
}

func (c *Collector) Start(out chan<- *domain.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("simulator already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true

	c.wg.Add(1)
	go c.run(ctx, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	return nil
}

func (c *Collector) run(ctx context.Context, out chan<- *domain.Batch) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, b := range c.Tick(c.now()) {
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Tick simulates one transmission round at emission time t and returns one
// batch per station that heard at least one payload.
func (c *Collector) Tick(t time.Time) []*domain.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	byStation := make(map[string]*domain.Batch, len(c.cfg.Stations))
	order := make([]*domain.Batch, 0, len(c.cfg.Stations))
	for i := 0; i < c.cfg.PayloadsPerTick; i++ {
		payload := domain.Payload(c.rng.Uint64())
		emitted := t.Add(time.Duration(i) * time.Millisecond * 10)
		for _, st := range c.cfg.Stations {
			if c.cfg.DropRate > 0 && c.rng.Float64() < c.cfg.DropRate {
				continue
			}
			delay := PropagationDelay(c.emitter, st.Position) + c.rng.NormFloat64()*c.cfg.JitterSeconds
			secs, frac := split(emitted, delay)

			b, ok := byStation[st.Name]
			if !ok {
				b = &domain.Batch{Station: domain.StationID(st.Name), ReceivedAt: t}
				byStation[st.Name] = b
				order = append(order, b)
			}
			b.Reports = append(b.Reports, domain.Report{Payload: payload, Secs: secs, FracSecs: frac})
		}
	}
	c.advance()
	return order
}

// advance moves the emitter north-east by one tick's worth of travel.
func (c *Collector) advance() {
	if c.cfg.EmitterSpeed == 0 {
		return
	}
	metres := c.cfg.EmitterSpeed * c.cfg.Interval.Seconds()
	dLat := metres / math.Sqrt2 / 111_320
	dLon := metres / math.Sqrt2 / (111_320 * math.Cos(c.emitter.Latitude*math.Pi/180))
	c.emitter.Latitude += dLat
	c.emitter.Longitude += dLon
}

// split turns t+delay into whole seconds and a fraction in [0,1).
func split(t time.Time, delay float64) (int64, float64) {
	total := float64(t.UnixNano()%int64(time.Second))/1e9 + delay
	whole := math.Floor(total)
	secs := t.Unix() + int64(whole)
	frac := total - whole
	if frac >= 1 {
		frac = 0
		secs++
	}
	if frac < 0 {
		frac = 0
	}
	return secs, frac
}

var _ ports.Collector = (*Collector)(nil)
