package ports

import "github.com/ghalamif/mlatflow/internal/domain"

type BatchQueue interface {
	Enqueue(b *domain.Batch) bool
	DequeueBatch(max int) []*domain.Batch
	Len() int
}
