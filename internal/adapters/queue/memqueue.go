package queue

import (
	"sync"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// MemQueue is a bounded in-memory FIFO of station batches. It is the hand-off
// point between session readers and the single correlation goroutine.
type MemQueue struct {
	mu   sync.Mutex
	data []*domain.Batch
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{
		data: make([]*domain.Batch, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(b *domain.Batch) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, b)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []*domain.Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]*domain.Batch, max)
	copy(out, q.data[:max])
	n := copy(q.data, q.data[max:])
	clear(q.data[n:])
	q.data = q.data[:n]
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.BatchQueue = (*MemQueue)(nil)
