package domain

import "time"

// Report is one observation inside a station batch, before it is attributed
// to the station that sent it.
type Report struct {
	Payload  Payload `json:"payload"`
	Secs     int64   `json:"secs"`
	FracSecs float64 `json:"frac_secs"`
}

// Batch is the unit of ingestion: every report in it comes from one
// already-registered station and is applied to the index all-or-nothing.
type Batch struct {
	Station    StationID `json:"station"`
	ReceivedAt time.Time `json:"received_at"`
	Reports    []Report  `json:"reports"`
}

// StationInfo is the metadata a station presents when its session opens.
type StationInfo struct {
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Altitude       float64 `json:"altitude"`
	OffsetSecs     int64   `json:"offset_secs"`
	OffsetFracSecs float64 `json:"offset_frac_secs"`
}

// EligibleGroup is a set of same-payload stamps from distinct stations that
// fall inside one correlation window. WindowStart is the stamp that opened the
// window; it is not necessarily a member after per-station deduplication.
type EligibleGroup struct {
	Payload     Payload `json:"payload"`
	WindowStart Stamp   `json:"window_start"`
	Members     []Stamp `json:"members"`
}

// Stations returns the member station IDs in member order.
func (g EligibleGroup) Stations() []StationID {
	out := make([]StationID, len(g.Members))
	for i, m := range g.Members {
		out[i] = m.Station
	}
	return out
}
