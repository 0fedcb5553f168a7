package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

func TestFileLogAppendIterateAndReopen(t *testing.T) {
	dir := t.TempDir()

	l, err := NewFileLog(dir)
	if err != nil {
		t.Fatalf("new capture: %v", err)
	}

	b1 := &domain.Batch{
		Station:    "alpha",
		ReceivedAt: time.Unix(1700000000, 0).UTC(),
		Reports:    []domain.Report{{Payload: 0x8d4840d6, Secs: 1700000000, FracSecs: 0.25}},
	}
	b2 := &domain.Batch{Station: "bravo"}

	id1, err := l.Append(b1)
	if err != nil || id1 != 1 {
		t.Fatalf("append batch 1: %v id=%d", err, id1)
	}
	id2, err := l.Append(b2)
	if err != nil || id2 != 2 {
		t.Fatalf("append batch 2: %v id=%d", err, id2)
	}

	var got []*domain.Batch
	if err := l.Iterate(1, func(id ports.CaptureEntryID, b *domain.Batch) error {
		got = append(got, b)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(got))
	}
	if got[0].Reports[0].Payload != 0x8d4840d6 || got[0].Reports[0].FracSecs != 0.25 {
		t.Fatalf("report did not round-trip: %+v", got[0].Reports)
	}

	var fromTwo int
	if err := l.Iterate(2, func(ports.CaptureEntryID, *domain.Batch) error {
		fromTwo++
		return nil
	}); err != nil {
		t.Fatalf("iterate from 2: %v", err)
	}
	if fromTwo != 1 {
		t.Fatalf("expected 1 batch from id 2, got %d", fromTwo)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := appendGarbage(filepath.Join(dir, "capture.log")); err != nil {
		t.Fatalf("append garbage: %v", err)
	}

	l2, err := OpenFileLog(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer l2.Close()

	stats := l2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}

	id3, err := l2.Append(b2)
	if err != nil || id3 != 3 {
		t.Fatalf("append after reopen: %v id=%d", err, id3)
	}
}

func TestOpenFileLogMissing(t *testing.T) {
	if _, err := OpenFileLog(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing capture")
	}
}

func TestOpenFileLogLeavesTornTailAlone(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileLog(dir)
	if err != nil {
		t.Fatalf("new capture: %v", err)
	}
	if _, err := w.Append(&domain.Batch{Station: "a", Reports: []domain.Report{{Payload: 1, Secs: 100, FracSecs: 0.5}}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// a second record whose body the writer has not finished flushing
	path := filepath.Join(dir, "capture.log")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte{0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 40, '{', '"'}); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close partial: %v", err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	r, err := OpenFileLog(dir)
	if err != nil {
		t.Fatalf("open capture: %v", err)
	}
	var ids []ports.CaptureEntryID
	if err := r.Iterate(0, func(id ports.CaptureEntryID, _ *domain.Batch) error {
		ids = append(ids, id)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected only the complete record, got %v", ids)
	}
	if _, err := r.Append(&domain.Batch{Station: "a"}); err != ErrReadOnly {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close reader: %v", err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if after.Size() != before.Size() {
		t.Fatalf("read-only open changed the capture from %d to %d bytes", before.Size(), after.Size())
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA})
	return err
}
