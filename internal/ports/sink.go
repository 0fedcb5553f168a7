package ports

import "github.com/ghalamif/mlatflow/internal/domain"

// GroupSink receives every eligible group found by one scan pass.
type GroupSink interface {
	WriteGroups(groups []domain.EligibleGroup) error
	Name() string
}
