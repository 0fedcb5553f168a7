package queue

import (
	"testing"

	"github.com/ghalamif/mlatflow/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	b1 := &domain.Batch{Station: "s1"}
	b2 := &domain.Batch{Station: "s2"}

	if !q.Enqueue(b1) || !q.Enqueue(b2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].Station != "s1" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].Station != "s2" {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if q.DequeueBatch(1) != nil {
		t.Fatalf("expected nil from empty queue")
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	b := &domain.Batch{Station: "cap"}

	if !q.Enqueue(b) || !q.Enqueue(b) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(b) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(b) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}
