package ports

import "github.com/ghalamif/mlatflow/internal/domain"

type CaptureEntryID uint64

// Capture records accepted batches so a session can be replayed offline.
type Capture interface {
	Append(b *domain.Batch) (CaptureEntryID, error)
	Iterate(from CaptureEntryID, fn func(id CaptureEntryID, b *domain.Batch) error) error
	Stats() CaptureStats
	Close() error
}

type CaptureStats struct {
	LatestAppended CaptureEntryID
	SizeBytes      int64
}
