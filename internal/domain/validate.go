package domain

import (
	"fmt"
	"math"
)

// Validate checks a single report. Fractional seconds must lie in [0, 1).
func (r Report) Validate() error {
	if math.IsNaN(r.FracSecs) || math.IsInf(r.FracSecs, 0) {
		return fmt.Errorf("frac_secs is not finite")
	}
	if r.FracSecs < 0 || r.FracSecs >= 1 {
		return fmt.Errorf("frac_secs %v outside [0,1)", r.FracSecs)
	}
	if r.Secs < 0 {
		return fmt.Errorf("secs %d is negative", r.Secs)
	}
	return nil
}

// Validate checks every report of the batch and reports the first failure.
func (b *Batch) Validate() error {
	if b == nil {
		return NewDecodeError("", "nil batch", nil)
	}
	if b.Station == "" {
		return NewDecodeError("", "batch has no station", nil)
	}
	for i, r := range b.Reports {
		if err := r.Validate(); err != nil {
			return &DecodeError{Station: b.Station, Index: i, Reason: err.Error()}
		}
	}
	return nil
}

// Validate checks the metadata presented during the handshake.
func (s StationInfo) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Latitude < -90 || s.Latitude > 90 || math.IsNaN(s.Latitude) {
		return fmt.Errorf("latitude %v out of range", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 || math.IsNaN(s.Longitude) {
		return fmt.Errorf("longitude %v out of range", s.Longitude)
	}
	if s.OffsetFracSecs < 0 || s.OffsetFracSecs >= 1 {
		return fmt.Errorf("offset_frac_secs %v outside [0,1)", s.OffsetFracSecs)
	}
	return nil
}
