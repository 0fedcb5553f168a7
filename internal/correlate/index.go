// Package correlate holds the report index that groups time-of-arrival
// reports by payload and extracts the clusters usable for multilateration.
package correlate

import (
	"math"
	"sort"
	"sync"

	"github.com/ghalamif/mlatflow/internal/domain"
)

// Index maps each payload to the stamps reported for it, kept in ascending
// time order at all times. A station may appear several times for the same
// payload; deduplication happens only when groups are extracted.
//
// All methods are safe for concurrent use. Scan and Prune hold the lock for a
// full pass so they always observe a consistent snapshot.
type Index struct {
	mu         sync.Mutex
	params     Params
	reports    map[domain.Payload][]domain.Stamp
	lastReport float64
	seen       bool
}

// Stats is a point-in-time view of the index size.
type Stats struct {
	Payloads       int     `json:"payloads"`
	Reports        int     `json:"reports"`
	LastReportTime float64 `json:"last_report_time"`
}

// NewIndex builds an empty index. Zero fields take their defaults and values
// Params.Validate rejects (NaN, negative, infinite) are replaced by defaults too;
// callers wanting an error instead should validate first.
func NewIndex(p Params) *Index {
	return &Index{
		params:  p.sanitized(),
		reports: make(map[domain.Payload][]domain.Stamp),
	}
}

func (x *Index) Params() Params { return x.params }

// Insert places st into the payload's sequence after any equal stamps, so
// ties keep their arrival order.
func (x *Index) Insert(payload domain.Payload, st domain.Stamp) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.insertLocked(payload, st)
}

func (x *Index) insertLocked(payload domain.Payload, st domain.Stamp) {
	stamps := x.reports[payload]
	i := sort.Search(len(stamps), func(i int) bool { return st.Less(stamps[i]) })
	stamps = append(stamps, domain.Stamp{})
	copy(stamps[i+1:], stamps[i:])
	stamps[i] = st
	x.reports[payload] = stamps

	if f := st.Float64(); !x.seen || f > x.lastReport {
		x.lastReport = f
		x.seen = true
	}
}

// Ingest applies a station batch atomically: every report is validated first
// and nothing is inserted if any of them is malformed. Reports are inserted in
// batch order under a single lock acquisition.
func (x *Index) Ingest(b *domain.Batch) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, r := range b.Reports {
		x.insertLocked(r.Payload, domain.NewStamp(b.Station, r.Secs, r.FracSecs))
	}
	return len(b.Reports), nil
}

// Reports returns a copy of the stamps stored for payload.
func (x *Index) Reports(payload domain.Payload) []domain.Stamp {
	x.mu.Lock()
	defer x.mu.Unlock()
	stamps, ok := x.reports[payload]
	if !ok {
		return nil
	}
	out := make([]domain.Stamp, len(stamps))
	copy(out, stamps)
	return out
}

// LastReportTime is the newest stamp ever ingested, in seconds. It is the
// reference clock for pruning. NaN means nothing has been ingested yet.
func (x *Index) LastReportTime() float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.seen {
		return math.NaN()
	}
	return x.lastReport
}

func (x *Index) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	st := Stats{Payloads: len(x.reports), LastReportTime: x.lastReport}
	for _, stamps := range x.reports {
		st.Reports += len(stamps)
	}
	return st
}
