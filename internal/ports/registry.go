package ports

import "github.com/ghalamif/mlatflow/internal/domain"

// StationDirectory lists the stations with a live session.
type StationDirectory interface {
	Stations() []domain.StationInfo
	Len() int
}
