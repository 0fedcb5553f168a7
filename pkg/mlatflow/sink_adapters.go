package mlatflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ghalamif/mlatflow/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("mlatflow: channel sink closed")

// GroupHandler is invoked once per eligible group.
type GroupHandler func(EligibleGroup) error

// NewCallbackSink adapts a GroupHandler into a GroupSink. Every group of a
// scan is handed to fn; the first error stops delivery of that scan.
func NewCallbackSink(name string, fn GroupHandler) GroupSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes each scan's groups via a channel; it returns the
// sink, the read-only channel, and a close function that the caller should
// invoke during shutdown.
func NewChannelSink(name string, buffer int) (GroupSink, <-chan []EligibleGroup, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []EligibleGroup, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   GroupHandler
}

func (s *callbackSink) WriteGroups(groups []domain.EligibleGroup) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	for _, g := range groups {
		if err := s.fn(g); err != nil {
			return err
		}
	}
	return nil
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []EligibleGroup
	closed chan struct{}
	mu     sync.RWMutex
	once   sync.Once
}

func (s *channelSink) WriteGroups(groups []domain.EligibleGroup) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(groups) == 0 {
		return nil
	}

	batch := make([]EligibleGroup, len(groups))
	copy(batch, groups)

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
