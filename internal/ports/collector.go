package ports

import "github.com/ghalamif/mlatflow/internal/domain"

// Collector delivers decoded station batches into the pipeline.
type Collector interface {
	Start(out chan<- *domain.Batch) error
	Stop() error
}
