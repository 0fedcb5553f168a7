package capture

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

const recordHeaderLen = 12

// ErrReadOnly is returned by Append on a capture opened with OpenFileLog.
var ErrReadOnly = errors.New("capture opened read-only")

// FileLog is an append-only record of accepted station batches. A torn tail
// left by a crash is truncated when the log is opened for writing.
type FileLog struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *bufio.Writer // nil when read-only
	nextID    ports.CaptureEntryID
	sizeBytes int64
}

func NewFileLog(dir string) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "capture.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	l := &FileLog{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, 1<<20),
	}
	if err := l.scanExisting(true); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

// OpenFileLog opens an existing capture for reading only. The file is never
// modified, so it is safe to replay the capture of a running server; a record
// still being written is skipped.
func OpenFileLog(dir string) (*FileLog, error) {
	path := filepath.Join(dir, "capture.log")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	l := &FileLog{path: path, file: f}
	if err := l.scanExisting(false); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

func (l *FileLog) scanExisting(truncate bool) error {
	stat, err := l.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset int64
		lastID ports.CaptureEntryID
	)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("capture scan header: %w", err)
		}
		id := ports.CaptureEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])

		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("capture scan body: %w", err)
		}
		offset += recordHeaderLen + int64(length)
		lastID = id
	}

	if truncate && offset < stat.Size() {
		if err := l.file.Truncate(offset); err != nil {
			return err
		}
	}
	l.sizeBytes = offset
	l.nextID = lastID
	return nil
}

func (l *FileLog) Append(b *domain.Batch) (ports.CaptureEntryID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return 0, ErrReadOnly
	}
	id := l.nextID + 1

	body, err := json.Marshal(b)
	if err != nil {
		return 0, err
	}

	// entry format: [8 bytes id][4 bytes len][len bytes json]
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))

	if _, err := l.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := l.writer.Write(body); err != nil {
		return 0, err
	}

	l.nextID = id
	l.sizeBytes += int64(len(body) + len(hdr))
	return id, nil
}

// Iterate replays entries with id >= from in append order. It stops quietly
// at a torn tail, which is a record another process has not finished writing.
func (l *FileLog) Iterate(from ports.CaptureEntryID, fn func(id ports.CaptureEntryID, b *domain.Batch) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}

	f, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("capture header: %w", err)
		}
		id := ports.CaptureEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		n := binary.BigEndian.Uint32(hdr[8:12])

		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("capture body: %w", err)
		}
		if id < from {
			continue
		}

		var b domain.Batch
		if err := json.Unmarshal(body, &b); err != nil {
			return fmt.Errorf("corrupt capture entry %d: %w", id, err)
		}
		if err := fn(id, &b); err != nil {
			return err
		}
	}
}

func (l *FileLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *FileLog) flushLocked() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.Flush()
}

func (l *FileLog) Stats() ports.CaptureStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ports.CaptureStats{
		LatestAppended: l.nextID,
		SizeBytes:      l.sizeBytes,
	}
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.flushLocked(), l.file.Close())
}

var _ ports.Capture = (*FileLog)(nil)
