package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// Peer is the outbound half of a station session.
type Peer interface {
	Send(line []byte) error
	Close() error
}

type entry struct {
	info domain.StationInfo
	peer Peer
}

// Registry tracks stations with a live session. The correlation core does not
// consult it; it only decides who receives broadcasts.
type Registry struct {
	mu       sync.RWMutex
	stations map[domain.StationID]entry
	onChange func(n int)
}

func NewRegistry() *Registry {
	return &Registry{stations: make(map[domain.StationID]entry)}
}

// OnChange installs a hook called with the station count after every
// connect or disconnect.
func (r *Registry) OnChange(fn func(n int)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Registry) Connected(info domain.StationInfo, peer Peer) error {
	id := domain.StationID(info.Name)

	r.mu.Lock()
	if _, ok := r.stations[id]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrStationExists, id)
	}
	r.stations[id] = entry{info: info, peer: peer}
	n, hook := len(r.stations), r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

// Disconnected removes the station only if peer is still the one registered
// under its name.
func (r *Registry) Disconnected(id domain.StationID, peer Peer) {
	r.mu.Lock()
	e, ok := r.stations[id]
	if !ok || (peer != nil && e.peer != peer) {
		r.mu.Unlock()
		return
	}
	delete(r.stations, id)
	n, hook := len(r.stations), r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
}

func (r *Registry) Lookup(id domain.StationID) (domain.StationInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.stations[id]
	return e.info, ok
}

// Stations returns the registered station metadata sorted by name.
func (r *Registry) Stations() []domain.StationInfo {
	r.mu.RLock()
	out := make([]domain.StationInfo, 0, len(r.stations))
	for _, e := range r.stations {
		out = append(out, e.info)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stations)
}

// Broadcast sends line to every live session. Peers that fail the write are
// closed and unregistered; their errors are returned joined.
func (r *Registry) Broadcast(line []byte) error {
	r.mu.RLock()
	targets := make(map[domain.StationID]Peer, len(r.stations))
	for id, e := range r.stations {
		targets[id] = e.peer
	}
	r.mu.RUnlock()

	var errs []error
	for id, peer := range targets {
		if err := peer.Send(line); err != nil {
			errs = append(errs, fmt.Errorf("station %s: %w", id, errors.Join(domain.ErrTransport, err)))
			_ = peer.Close()
			r.Disconnected(id, peer)
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every peer and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	peers := make([]Peer, 0, len(r.stations))
	for _, e := range r.stations {
		peers = append(peers, e.peer)
	}
	r.stations = make(map[domain.StationID]entry)
	hook := r.onChange
	r.mu.Unlock()

	for _, p := range peers {
		_ = p.Close()
	}
	if hook != nil {
		hook(0)
	}
}

var _ ports.StationDirectory = (*Registry)(nil)
