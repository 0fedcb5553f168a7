package mlatflow

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ghalamif/mlatflow/internal/adapters/capture"
	"github.com/ghalamif/mlatflow/internal/correlate"
	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// ReplayStats summarises one replay run.
type ReplayStats struct {
	Batches  int
	Rejected int
	Reports  int
	Scans    int
	Groups   int
}

// OpenCapture opens an existing capture directory for replay.
func OpenCapture(dir string) (Capture, error) {
	return capture.OpenFileLog(dir)
}

// Replay feeds every captured batch through a fresh index. Since a capture
// carries no wall clock, a scan runs each time the observed report time
// advances by scanInterval, plus once at the end. Groups go to out.
func Replay(ctx context.Context, c Capture, p Params, scanInterval time.Duration, out GroupSink) (ReplayStats, error) {
	var st ReplayStats
	if c == nil {
		return st, fmt.Errorf("capture is required")
	}
	if scanInterval <= 0 {
		scanInterval = 300 * time.Millisecond
	}
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return st, fmt.Errorf("correlation params: %w", err)
	}
	idx := correlate.NewIndex(p)
	step := scanInterval.Seconds()
	lastScan := math.NaN()

	scan := func() error {
		st.Scans++
		groups := idx.Scan()
		st.Groups += len(groups)
		if len(groups) > 0 && out != nil {
			if err := out.WriteGroups(groups); err != nil {
				return fmt.Errorf("%s: %w", out.Name(), err)
			}
		}
		idx.Prune()
		lastScan = idx.LastReportTime()
		return nil
	}

	err := c.Iterate(0, func(_ ports.CaptureEntryID, b *domain.Batch) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		st.Batches++
		n, err := idx.Ingest(b)
		if err != nil {
			st.Rejected++
			return nil
		}
		st.Reports += n

		now := idx.LastReportTime()
		if math.IsNaN(lastScan) {
			lastScan = now
			return nil
		}
		if now-lastScan >= step {
			return scan()
		}
		return nil
	})
	if err != nil {
		return st, err
	}
	return st, scan()
}

// FormatGroup writes a group in the plain text form used by the replay tool.
func FormatGroup(w io.Writer, g EligibleGroup) error {
	if _, err := fmt.Fprintf(w, "Report with data %x\n", uint64(g.Payload)); err != nil {
		return err
	}
	for _, m := range g.Members {
		if _, err := fmt.Fprintf(w, "Stamp from %s: %.9f\n", m.Station, m.Float64()); err != nil {
			return err
		}
	}
	return nil
}
