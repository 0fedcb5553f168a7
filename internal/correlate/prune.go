package correlate

import "github.com/ghalamif/mlatflow/internal/domain"

// Prune drops every payload whose newest stamp lags the newest stamp seen
// anywhere by more than Params.Stale seconds. The aging clock is observed
// traffic, not wall time, so a silent network freezes aging. It returns the
// removed payloads.
func (x *Index) Prune() []domain.Payload {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.seen {
		return nil
	}

	var removed []domain.Payload
	for payload, stamps := range x.reports {
		if len(stamps) == 0 {
			delete(x.reports, payload)
			continue
		}
		newest := stamps[len(stamps)-1].Float64()
		if x.lastReport-newest > x.params.Stale {
			// deleting during range is safe and never revisits the entry
			delete(x.reports, payload)
			removed = append(removed, payload)
		}
	}
	return removed
}
