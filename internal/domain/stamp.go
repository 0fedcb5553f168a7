package domain

// StationID identifies a receiving station for the lifetime of its session.
type StationID string

// Payload is the fingerprint of a received signal. Reports carrying the same
// payload are candidates for correlation across stations.
type Payload uint64

// Stamp is a single time of arrival reported by a station. Stamps are ordered
// by (Secs, FracSecs); the station takes no part in ordering or equality, so
// two stations can tie.
type Stamp struct {
	Station  StationID `json:"station"`
	Secs     int64     `json:"secs"`
	FracSecs float64   `json:"frac_secs"`
}

func NewStamp(station StationID, secs int64, frac float64) Stamp {
	return Stamp{Station: station, Secs: secs, FracSecs: frac}
}

// Float64 collapses the stamp into seconds. Precision is good to about a
// microsecond for current epoch values, which is enough for window arithmetic.
func (s Stamp) Float64() float64 {
	return float64(s.Secs) + s.FracSecs
}

// Compare returns -1, 0 or +1 depending on whether s is before, equal to or
// after o.
func (s Stamp) Compare(o Stamp) int {
	switch {
	case s.Secs < o.Secs:
		return -1
	case s.Secs > o.Secs:
		return 1
	case s.FracSecs < o.FracSecs:
		return -1
	case s.FracSecs > o.FracSecs:
		return 1
	default:
		return 0
	}
}

func (s Stamp) Less(o Stamp) bool  { return s.Compare(o) < 0 }
func (s Stamp) Equal(o Stamp) bool { return s.Compare(o) == 0 }
