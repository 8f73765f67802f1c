package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/types"
	"github.com/go-jafka/jafka/utils"
)

// Config groups the storage-level settings: the on-disk root directory
// and a rolling strategy (spec §4.9). Factory, NewLog and LoadLog do
// not read it; they take the root directory and rolling strategy as
// arguments.
type Config struct {
	RootDir string
	Rolling types.RollingStrategy
}

// Log is the file-backed implementation of the types.Log contract: a
// directory holding an ordered sequence of segments, named by base
// offset, with the last segment always the writable "active" one.
// Grounded on the teacher's storage/log.go + storage/segment.go
// partition-directory model.
type Log struct {
	mu sync.RWMutex

	topic     string
	partition types.PartitionIndex
	dir       string

	segments []*segment // oldest to newest; segments[len-1] is active
	rolling  types.RollingStrategy

	lastFlushedMs int64
}

// NewLog creates a brand-new Log directory with a single empty
// segment at base offset 0. Called only under the log manager's
// creation mutex (spec §4.1).
func NewLog(rootDir, topic string, partition types.PartitionIndex, rolling types.RollingStrategy) (*Log, error) {
	dir := filepath.Join(rootDir, types.FormatLogDirName(topic, partition))
	if err := utils.EnsurePath(dir, true); err != nil {
		return nil, fmt.Errorf("create log dir %q: %w", dir, err)
	}
	seg, err := newSegment(dir, 0)
	if err != nil {
		return nil, err
	}
	if rolling == nil {
		rolling = FixedSizeRollingStrategy{MaxBytes: 1 << 30}
	}
	return &Log{
		topic:         topic,
		partition:     partition,
		dir:           dir,
		segments:      []*segment{seg},
		rolling:       rolling,
		lastFlushedMs: time.Now().UnixMilli(),
	}, nil
}

// LoadLog recovers an existing Log directory at startup (spec §4.2
// Loader). dir must already exist; if it holds no segment, a fresh
// base-offset-0 segment is created so every Log always has an active
// segment.
func LoadLog(dir, topic string, partition types.PartitionIndex, rolling types.RollingStrategy) (*Log, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read log dir %q: %w", dir, err)
	}
	var baseOffsets []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) != logSuffix {
			continue
		}
		base, err := parseSegmentBaseOffset(e.Name())
		if err != nil {
			logging.Named("storage").Warn("skipping malformed segment file", "dir", dir, "file", e.Name(), "error", err)
			continue
		}
		baseOffsets = append(baseOffsets, base)
	}
	sort.Slice(baseOffsets, func(i, j int) bool { return baseOffsets[i] < baseOffsets[j] })

	if rolling == nil {
		rolling = FixedSizeRollingStrategy{MaxBytes: 1 << 30}
	}
	l := &Log{
		topic:         topic,
		partition:     partition,
		dir:           dir,
		rolling:       rolling,
		lastFlushedMs: time.Now().UnixMilli(),
	}
	for _, base := range baseOffsets {
		seg, err := loadSegment(dir, base)
		if err != nil {
			return nil, fmt.Errorf("load segment base %d: %w", base, err)
		}
		l.segments = append(l.segments, seg)
	}
	if len(l.segments) == 0 {
		seg, err := newSegment(dir, 0)
		if err != nil {
			return nil, err
		}
		l.segments = append(l.segments, seg)
	}
	return l, nil
}

func (l *Log) active() *segment {
	return l.segments[len(l.segments)-1]
}

// Append writes a record to the active segment, rolling first if the
// configured RollingStrategy says to.
func (l *Log) Append(record []byte) (int64, error) {
	l.mu.Lock()
	active := l.active()
	if l.rolling.ShouldRoll(active.Size(), active.LastModified()) {
		next, err := newSegment(l.dir, active.nextOffset)
		if err != nil {
			l.mu.Unlock()
			return 0, fmt.Errorf("roll segment: %w", err)
		}
		l.segments = append(l.segments, next)
		active = next
	}
	l.mu.Unlock()
	return active.append(record)
}

// Read returns the record at the given absolute offset, scanning
// segments newest-to-oldest for the first one whose base offset is at
// or below it.
func (l *Log) Read(offset int64) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.segments) - 1; i >= 0; i-- {
		seg := l.segments[i]
		if offset >= seg.baseOffset {
			return seg.read(offset)
		}
	}
	return nil, fmt.Errorf("offset %d not found in log %s", offset, l.dir)
}

// Size returns the Log's aggregate size across all segments
// (types.Log contract).
func (l *Log) Size() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total int64
	for _, seg := range l.segments {
		total += seg.Size()
	}
	return total
}

// Flush syncs every segment's store and index file to disk, mirroring
// the teacher's SyncPartition. The first I/O error aborts the sweep;
// LastFlushedTime only advances on full success.
func (l *Log) Flush() error {
	l.mu.RLock()
	segments := make([]*segment, len(l.segments))
	copy(segments, l.segments)
	l.mu.RUnlock()

	for _, seg := range segments {
		if err := seg.sync(); err != nil {
			return fmt.Errorf("sync segment %s: %w", seg.Path(), err)
		}
	}

	l.mu.Lock()
	l.lastFlushedMs = time.Now().UnixMilli()
	l.mu.Unlock()
	return nil
}

// LastFlushedTime returns the epoch-millis time of the last successful
// Flush (types.Log contract).
func (l *Log) LastFlushedTime() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastFlushedMs
}

// TopicName returns the topic this Log belongs to.
func (l *Log) TopicName() string {
	return l.topic
}

// Dir returns the Log's backing directory.
func (l *Log) Dir() string {
	return l.dir
}

// MarkDeletedWhile scans non-active segments oldest-first, stopping at
// the first one filter rejects, and returns the accepted prefix, each
// segment flagged as deleted (spec §4.8, §4.4). It does not unlink
// anything; DeleteSegment does.
func (l *Log) MarkDeletedWhile(filter func(types.LogSegment) bool) ([]types.LogSegment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var marked []types.LogSegment
	// segments[len-1] is the active segment and is never offered.
	for _, seg := range l.segments[:len(l.segments)-1] {
		if !filter(seg) {
			break
		}
		seg.mu.Lock()
		seg.deleted = true
		seg.mu.Unlock()
		marked = append(marked, seg)
	}
	return marked, nil
}

// DeleteSegment closes and unlinks a segment previously returned by
// MarkDeletedWhile. Close errors are logged and ignored (spec §4.4);
// only the unlink's own success is reported back to the caller so the
// retention engine can count it accurately (spec §9, the deletion
// counter open question).
func (l *Log) DeleteSegment(target types.LogSegment) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i, seg := range l.segments {
		if seg == target {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, fmt.Errorf("segment %s is not part of log %s", target.Path(), l.dir)
	}
	if idx == len(l.segments)-1 {
		return false, fmt.Errorf("refusing to delete active segment %s", target.Path())
	}

	seg := l.segments[idx]
	if err := seg.remove(); err != nil {
		return false, err
	}
	l.segments = append(l.segments[:idx], l.segments[idx+1:]...)
	return true, nil
}

// GetOffsetsBefore answers an offset lookup query by walking segments
// newest-to-oldest and, for each non-empty segment last modified at or
// before req.TimestampMs, adding that segment's last offset, until
// req.MaxNumOffsets offsets are collected.
func (l *Log) GetOffsetsBefore(req types.OffsetRequest) ([]int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var offsets []int64
	for i := len(l.segments) - 1; i >= 0 && len(offsets) < req.MaxNumOffsets; i-- {
		seg := l.segments[i]
		if seg.LastModified() > req.TimestampMs {
			continue
		}
		n := seg.recordCount()
		if n == 0 {
			continue
		}
		offsets = append(offsets, seg.baseOffset+int64(n)-1)
	}
	return offsets, nil
}

// Close releases every segment's open file handles.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, seg := range l.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
