package session

import (
	"errors"

	"github.com/ghalamif/mlatflow/internal/adapters/wire"
	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// BroadcastSink pushes each eligible group to every connected station.
type BroadcastSink struct {
	reg *Registry
}

func NewBroadcastSink(reg *Registry) *BroadcastSink {
	return &BroadcastSink{reg: reg}
}

func (b *BroadcastSink) Name() string { return "broadcast" }

func (b *BroadcastSink) WriteGroups(groups []domain.EligibleGroup) error {
	if len(groups) == 0 || b.reg.Len() == 0 {
		return nil
	}
	var errs []error
	for _, g := range groups {
		line, err := wire.EncodeGroup(g)
		if err != nil {
			return err
		}
		if err := b.reg.Broadcast(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ ports.GroupSink = (*BroadcastSink)(nil)
