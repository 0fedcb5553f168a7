package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks a batch or handshake that could not be decoded or failed
	// validation. The offending unit is dropped; serving continues.
	ErrDecode = errors.New("mlat: decode failed")
	// ErrTransport marks a severed station connection.
	ErrTransport = errors.New("mlat: transport failed")
	// ErrStationExists is returned when a second live session claims a station
	// name that is already connected.
	ErrStationExists = errors.New("mlat: station already connected")
	// ErrQueueFull indicates the batch queue rejected a batch according to policy.
	ErrQueueFull = errors.New("mlat: queue full")
)

// DecodeError describes why a batch was rejected. Index is the position of
// the offending report inside the batch, or -1 when the whole frame is bad.
type DecodeError struct {
	Station StationID
	Index   int
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Station != "" {
		msg += " station=" + string(e.Station)
	}
	if e.Index >= 0 {
		msg += fmt.Sprintf(" report=%d", e.Index)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}

// NewDecodeError builds a frame-level DecodeError.
func NewDecodeError(station StationID, reason string, err error) *DecodeError {
	return &DecodeError{Station: station, Index: -1, Reason: reason, Err: err}
}
