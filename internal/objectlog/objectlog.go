// Package objectlog is a concrete, segment-file-backed implementation
// of the Log substrate the object manager is built against: append,
// getEntry, free, segment existence, and sync, with size-triggered
// segment rotation.
package objectlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// Config controls segment rotation and durability.
type Config struct {
	SegmentSize int64 // rotate once the active segment reaches this size
	SyncWrites  bool  // fsync after every append, not just on explicit Sync()
}

func (c Config) withDefaults() Config {
	if c.SegmentSize <= 0 {
		c.SegmentSize = 64 << 20
	}
	return c
}

// Log is the concrete append-only segment log. It never acquires a
// hash index bucket lock; callers hold those locks around the calls
// into Log that they need atomic with an index update.
type Log struct {
	cfg     Config
	dataDir string
	logger  *zap.Logger

	mu        sync.Mutex
	segments  map[uint64]*segment
	current   *segment
	nextSegID uint64
	freed     map[model.LogReference]bool
}

type segment struct {
	id   uint64
	file *os.File
	size int64
}

// Open opens (creating if needed) a log rooted at dataDir.
func Open(dataDir string, cfg Config, logger *zap.Logger) (*Log, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("objectlog: create data dir: %w", err)
	}
	l := &Log{
		cfg:      cfg.withDefaults(),
		dataDir:  dataDir,
		logger:   logger,
		segments: make(map[uint64]*segment),
		freed:    make(map[model.LogReference]bool),
	}
	if err := l.openNewSegment(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) openNewSegment() error {
	id := l.nextSegID
	l.nextSegID++
	path := filepath.Join(l.dataDir, fmt.Sprintf("segment-%020d.log", id))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("objectlog: open segment %d: %w", id, err)
	}
	seg := &segment{id: id, file: f}
	l.segments[id] = seg
	l.current = seg
	if l.logger != nil {
		l.logger.Info("opened new log segment", zap.Uint64("segment_id", id), zap.String("path", path))
	}
	return nil
}

func (l *Log) checkRotation() error {
	if l.current.size >= l.cfg.SegmentSize {
		return l.openNewSegment()
	}
	return nil
}

// appendOne writes one framed record and returns its reference.
// Framing: 4-byte little-endian length prefix, then the record bytes
// (the record itself carries its own checksum; the length prefix is
// purely for segment scanning/replay).
func (l *Log) appendOne(recordBytes []byte) (model.LogReference, error) {
	if err := l.checkRotation(); err != nil {
		return model.LogReference{}, err
	}
	seg := l.current
	offset := seg.size
	var lenPrefix [4]byte
	lenPrefix[0] = byte(len(recordBytes))
	lenPrefix[1] = byte(len(recordBytes) >> 8)
	lenPrefix[2] = byte(len(recordBytes) >> 16)
	lenPrefix[3] = byte(len(recordBytes) >> 24)

	if _, err := seg.file.Write(lenPrefix[:]); err != nil {
		return model.LogReference{}, fmt.Errorf("objectlog: write length prefix: %w", err)
	}
	if _, err := seg.file.Write(recordBytes); err != nil {
		return model.LogReference{}, fmt.Errorf("objectlog: write record: %w", err)
	}
	seg.size += int64(len(lenPrefix)) + int64(len(recordBytes))

	if l.cfg.SyncWrites {
		if err := seg.file.Sync(); err != nil {
			return model.LogReference{}, fmt.Errorf("objectlog: sync: %w", err)
		}
	}

	return model.LogReference{
		SegmentID: seg.id,
		Offset:    offset + int64(len(lenPrefix)),
		Length:    int32(len(recordBytes)),
	}, nil
}

// Append writes one or more records atomically as a unit: either all
// become durable together or none does once Sync completes, and no
// other appender's record can interleave between them on the wire.
func (l *Log) Append(records ...[]byte) ([]model.LogReference, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	refs := make([]model.LogReference, 0, len(records))
	for _, rec := range records {
		ref, err := l.appendOne(rec)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// GetEntry reads the raw framed record bytes a reference points to.
func (l *Log) GetEntry(ref model.LogReference) ([]byte, error) {
	l.mu.Lock()
	seg, ok := l.segments[ref.SegmentID]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("objectlog: segment %d not found", ref.SegmentID)
	}
	buf := make([]byte, ref.Length)
	if _, err := seg.file.ReadAt(buf, ref.Offset); err != nil {
		return nil, fmt.Errorf("objectlog: read entry: %w", err)
	}
	return buf, nil
}

// Free marks a reference as logically dead. Bytes remain readable
// until the segment housing them is reclaimed.
func (l *Log) Free(ref model.LogReference) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.freed[ref] = true
}

// IsFreed reports whether a reference has been freed. Exposed for
// tests and cleaner bookkeeping.
func (l *Log) IsFreed(ref model.LogReference) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.freed[ref]
}

// GetSegmentID returns the segment a reference lives in.
func (l *Log) GetSegmentID(ref model.LogReference) uint64 {
	return ref.SegmentID
}

// SegmentExists reports whether a segment id is still a live segment
// in this log (not yet physically reclaimed).
func (l *Log) SegmentExists(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.segments[id]
	return ok
}

// Sync blocks until every prior append is durable.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, seg := range l.segments {
		if err := seg.file.Sync(); err != nil {
			return fmt.Errorf("objectlog: sync segment %d: %w", seg.id, err)
		}
	}
	return nil
}

// ReclaimSegment physically removes a segment file once the cleaner
// has relocated every live entry out of it. Single-process stand-in
// for the log cleaner's segment reclamation, exercised by tests and
// CleanerCallbacks bookkeeping rather than a background goroutine.
func (l *Log) ReclaimSegment(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	seg, ok := l.segments[id]
	if !ok {
		return nil
	}
	if seg == l.current {
		return fmt.Errorf("objectlog: refusing to reclaim active segment %d", id)
	}
	path := seg.file.Name()
	if err := seg.file.Close(); err != nil {
		return err
	}
	delete(l.segments, id)
	return os.Remove(path)
}

// Close closes every open segment file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, seg := range l.segments {
		if err := seg.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
