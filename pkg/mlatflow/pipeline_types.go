package mlatflow

import (
	"github.com/ghalamif/mlatflow/internal/correlate"
	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

type (
	// StationID names a receiving station.
	StationID = domain.StationID
	// Payload is the fingerprint of an observed transmission.
	Payload = domain.Payload
	// Stamp is a station's time of arrival for one payload.
	Stamp = domain.Stamp
	// Report is one payload observation inside a station batch.
	Report = domain.Report
	// Batch is the unit of ingest: every report one station sent in one frame.
	Batch = domain.Batch
	// StationInfo is the self-description a station sends when it connects.
	StationInfo = domain.StationInfo
	// EligibleGroup is a set of stamps from distinct stations usable for multilateration.
	EligibleGroup = domain.EligibleGroup
	// DecodeError describes a batch or hello that was refused.
	DecodeError = domain.DecodeError
)

// Index is the payload to stamps index at the heart of the correlator.
type Index = correlate.Index

// IndexStats is a point-in-time view of the index size.
type IndexStats = correlate.Stats

// Collector streams station batches from any source into the pipeline.
type Collector = ports.Collector

// BatchQueue is the bounded queue between collectors and the correlator.
type BatchQueue = ports.BatchQueue

// GroupSink receives the groups found by each scan.
type GroupSink = ports.GroupSink

// Capture records accepted batches for offline replay.
type Capture = ports.Capture

// CaptureStats exposes capture metadata for observability.
type CaptureStats = ports.CaptureStats

// CaptureEntryID identifies a captured batch.
type CaptureEntryID = ports.CaptureEntryID

// Observability emits metrics and logs about throughput, latency and rejections.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

var (
	ErrDecode        = domain.ErrDecode
	ErrTransport     = domain.ErrTransport
	ErrStationExists = domain.ErrStationExists
	ErrQueueFull     = domain.ErrQueueFull
)

// NewIndex builds an empty index; zero fields of p take their defaults.
func NewIndex(p Params) *Index {
	return correlate.NewIndex(p)
}
