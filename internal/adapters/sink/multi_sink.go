package sink

import (
	"errors"
	"fmt"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// Fanout delivers each scan to every sink in order. A failing sink does not
// stop delivery to the rest; all failures are joined.
type Fanout struct {
	sinks []ports.GroupSink
}

func NewFanout(sinks ...ports.GroupSink) *Fanout {
	out := make([]ports.GroupSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{sinks: out}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Sinks() []ports.GroupSink { return f.sinks }

func (f *Fanout) WriteGroups(groups []domain.EligibleGroup) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.WriteGroups(groups); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ ports.GroupSink = (*Fanout)(nil)
