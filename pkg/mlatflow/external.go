package mlatflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ghalamif/mlatflow/internal/domain"
)

// ErrPublisherStopped is returned by Publish before Start or after Stop.
var ErrPublisherStopped = errors.New("mlatflow: publisher not running")

// Publisher is a Collector that in-process producers push batches into, for
// feeds that do not arrive over the station protocol. Batches are validated
// up front so a caller learns about a malformed batch immediately.
type Publisher struct {
	mu  sync.RWMutex
	out chan<- *domain.Batch
	now func() time.Time
}

func NewPublisher() *Publisher {
	return &Publisher{now: time.Now}
}

func (p *Publisher) Start(out chan<- *domain.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil {
		return errors.New("mlatflow: publisher already started")
	}
	p.out = out
	return nil
}

func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = nil
	return nil
}

// Publish hands one station batch to the pipeline. It blocks while the
// pipeline's intake buffer is full, until ctx is done.
func (p *Publisher) Publish(ctx context.Context, station StationID, reports []Report) error {
	b := &domain.Batch{
		Station:    station,
		ReceivedAt: p.now(),
		Reports:    append([]Report(nil), reports...),
	}
	if err := b.Validate(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.out == nil {
		return ErrPublisherStopped
	}
	select {
	case p.out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Collector = (*Publisher)(nil)
