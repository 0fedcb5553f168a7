package correlate

import "github.com/ghalamif/mlatflow/internal/domain"

// Scan returns every eligible group currently in the index. Groups of one
// payload come out in ascending time order; payloads are visited in map
// order. The index is not modified, so repeated scans with no intervening
// ingest yield the same groups.
func (x *Index) Scan() []domain.EligibleGroup {
	x.mu.Lock()
	defer x.mu.Unlock()

	var groups []domain.EligibleGroup
	for payload, stamps := range x.reports {
		groups = append(groups, scanPayload(payload, stamps, x.params)...)
	}
	return groups
}

// scanPayload partitions a sorted stamp sequence into consecutive windows.
// Each window opens at the first unconsumed stamp and takes every following
// stamp strictly earlier than open+Window. Windows never overlap, and each one
// consumes at least its opening stamp.
func scanPayload(payload domain.Payload, stamps []domain.Stamp, p Params) []domain.EligibleGroup {
	if len(stamps) < p.MinStations {
		return nil
	}
	if distinctStations(stamps) < p.MinStations {
		return nil
	}

	var groups []domain.EligibleGroup
	for i := 0; i < len(stamps); {
		start := stamps[i]
		limit := start.Float64() + p.Window
		j := i + 1
		for j < len(stamps) && stamps[j].Float64() < limit {
			j++
		}

		members := dedupLatest(stamps[i:j])
		if len(members) >= p.MinStations {
			groups = append(groups, domain.EligibleGroup{
				Payload:     payload,
				WindowStart: start,
				Members:     members,
			})
		}
		i = j
	}
	return groups
}

// dedupLatest keeps one stamp per station: the latest one inside the window.
// The result is a fresh slice in ascending time order.
func dedupLatest(window []domain.Stamp) []domain.Stamp {
	seen := make(map[domain.StationID]struct{}, len(window))
	kept := make([]domain.Stamp, 0, len(window))
	for k := len(window) - 1; k >= 0; k-- {
		st := window[k]
		if _, dup := seen[st.Station]; dup {
			continue
		}
		seen[st.Station] = struct{}{}
		kept = append(kept, st)
	}
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}
	return kept
}

func distinctStations(stamps []domain.Stamp) int {
	seen := make(map[domain.StationID]struct{})
	for _, st := range stamps {
		seen[st.Station] = struct{}{}
	}
	return len(seen)
}
