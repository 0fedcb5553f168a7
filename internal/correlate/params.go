package correlate

import (
	"fmt"
	"math"
)

// Params tunes grouping and aging. Window and Stale are in seconds.
type Params struct {
	Window      float64 `yaml:"window_seconds"`
	Stale       float64 `yaml:"stale_seconds"`
	MinStations int     `yaml:"min_distinct_stations"`
}

func DefaultParams() Params {
	return Params{
		Window:      0.001,
		Stale:       5.0,
		MinStations: 3,
	}
}

func (p *Params) ApplyDefaults() {
	d := DefaultParams()
	if p.Window == 0 {
		p.Window = d.Window
	}
	if p.Stale == 0 {
		p.Stale = d.Stale
	}
	if p.MinStations == 0 {
		p.MinStations = d.MinStations
	}
}

func (p Params) Validate() error {
	if !positiveFinite(p.Window) {
		return fmt.Errorf("window_seconds must be a finite value > 0, got %v", p.Window)
	}
	if !positiveFinite(p.Stale) {
		return fmt.Errorf("stale_seconds must be a finite value > 0, got %v", p.Stale)
	}
	if p.MinStations < 2 {
		return fmt.Errorf("min_distinct_stations must be >= 2")
	}
	return nil
}

// sanitized replaces every field Validate would reject with its default, so an
// index can never be built with a window that fails to advance.
func (p Params) sanitized() Params {
	p.ApplyDefaults()
	d := DefaultParams()
	if !positiveFinite(p.Window) {
		p.Window = d.Window
	}
	if !positiveFinite(p.Stale) {
		p.Stale = d.Stale
	}
	if p.MinStations < 2 {
		p.MinStations = d.MinStations
	}
	return p
}

// NaN compares false against everything, so it fails v > 0.
func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
