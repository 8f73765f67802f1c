// Package types holds the data model shared across the log manager,
// storage, and registry packages: topic/partition identifiers, the
// retention and flush policy bundles, and the error kinds a caller of
// the log manager can observe.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// PartitionIndex identifies a partition within a topic.
type PartitionIndex int

// Node represents a broker participating in the cluster, as announced
// through the registry client.
type Node struct {
	NodeID     int
	Host       string
	Port       int
	RaftID     string
	RaftAddr   string
	IsLeader   bool
}

// OffsetRequest asks a log for the offsets at or before a given
// timestamp, bounded by MaxNumOffsets. It mirrors the external `Log`
// contract's get_offsets_before operation (spec §4.8).
type OffsetRequest struct {
	Topic          string
	Partition      PartitionIndex
	TimestampMs    int64
	MaxNumOffsets  int
}

// InvalidPartitionError is returned when a partition index is outside
// [0, P(topic)) or the topic name is empty. It is never logged as an
// error by the log manager since it may be driven by client input.
type InvalidPartitionError struct {
	Topic     string
	Partition PartitionIndex
	Valid     int
}

func (e *InvalidPartitionError) Error() string {
	return fmt.Sprintf("invalid partition [%d] for topic [%s], valid partitions [0,%d)", e.Partition, e.Topic, e.Valid)
}

// ConfigError signals a misconfigured log directory: missing and
// uncreatable, or present but not a readable directory.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid log directory %q: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RetentionPolicy bundles the per-topic and default age/size retention
// settings (spec §3 "Retention policy bundle").
type RetentionPolicy struct {
	// PerTopicMaxAgeMs overrides DefaultMaxAgeMs for the named topic.
	PerTopicMaxAgeMs map[string]int64
	DefaultMaxAgeMs  int64
	// MaxSizeBytes is the broker-wide max aggregate size per log.
	// Negative means unbounded.
	MaxSizeBytes int64
}

// MaxAgeMs returns the effective retention age for a topic.
func (p RetentionPolicy) MaxAgeMs(topic string) int64 {
	if ms, ok := p.PerTopicMaxAgeMs[topic]; ok {
		return ms
	}
	return p.DefaultMaxAgeMs
}

// FlushPolicy bundles per-topic and default flush interval settings
// (spec §3 "Flush policy bundle").
type FlushPolicy struct {
	PerTopicIntervalMs map[string]int64
	DefaultIntervalMs  int64
	// SchedulerTickMs is the flush scheduler's tick rate.
	SchedulerTickMs int64
}

// IntervalMs returns the effective flush interval for a topic.
func (p FlushPolicy) IntervalMs(topic string) int64 {
	if ms, ok := p.PerTopicIntervalMs[topic]; ok {
		return ms
	}
	return p.DefaultIntervalMs
}

// FormatLogDirName builds the on-disk directory name for a
// (topic, partition) pair (spec §6 On-disk layout): "<topic>-<partition>".
func FormatLogDirName(topic string, partition PartitionIndex) string {
	return topic + "-" + strconv.Itoa(int(partition))
}

// ParseLogDirName recovers (topic, partition) from a directory name by
// splitting on the rightmost "-". The right-hand side must parse as a
// non-negative decimal integer; this resolves the spec's directory-name
// parsing open question explicitly rather than preserving the
// original's ambiguous left-to-right split (spec §9).
func ParseLogDirName(name string) (topic string, partition PartitionIndex, err error) {
	i := strings.LastIndex(name, "-")
	if i < 0 || i == len(name)-1 {
		return "", 0, fmt.Errorf("directory name %q has no rightmost '-' separating a partition", name)
	}
	topic = name[:i]
	if topic == "" {
		return "", 0, fmt.Errorf("directory name %q has an empty topic", name)
	}
	right := name[i+1:]
	n, err := strconv.ParseInt(right, 10, 64)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("directory name %q has a non-decimal or negative partition suffix %q", name, right)
	}
	return topic, PartitionIndex(n), nil
}

// LogSegment is the read-only view of a single on-disk segment file
// the retention engine inspects and marks for deletion (spec §4.8
// External Log contract, §3 LogSegment).
type LogSegment interface {
	// Size returns the segment's on-disk size in bytes.
	Size() int64
	// LastModified returns the segment's last-modified time in epoch
	// milliseconds.
	LastModified() int64
	// Path returns the segment's backing file path, used only for log
	// messages.
	Path() string
}

// Log is the external contract the log manager's registry, flush
// scheduler, and retention engine consume (spec §4.8). The log
// manager never constructs a Log itself; one is handed to it by an
// injected factory function at get-or-create time.
type Log interface {
	// Size returns the Log's aggregate size across all segments.
	Size() int64
	// Flush forces durability to disk; an error here is treated as
	// fatal by the flush scheduler (spec §4.3, §7).
	Flush() error
	// LastFlushedTime returns the epoch-millis time of the last
	// successful Flush.
	LastFlushedTime() int64
	// TopicName returns the topic this Log belongs to.
	TopicName() string
	// Dir returns the Log's backing directory.
	Dir() string
	// MarkDeletedWhile scans segments oldest-first, excluding the
	// active segment, passing each to filter; it stops at the first
	// segment filter rejects and returns the accepted prefix, already
	// flagged for deletion but not yet unlinked.
	MarkDeletedWhile(filter func(LogSegment) bool) ([]LogSegment, error)
	// DeleteSegment unlinks a segment previously returned by
	// MarkDeletedWhile. Returns whether the unlink actually succeeded,
	// alongside any error encountered closing or removing it.
	DeleteSegment(seg LogSegment) (bool, error)
	// GetOffsetsBefore answers an offset lookup query.
	GetOffsetsBefore(req OffsetRequest) ([]int64, error)
	// Close releases the Log's open file handles.
	Close() error
}

// GetEmptyOffsets is the static default response for an offset lookup
// against a Log that does not exist (spec §4.8 get_empty_offsets).
func GetEmptyOffsets(req OffsetRequest) []int64 {
	return []int64{}
}

// RollingStrategy decides whether a Log's active segment should be
// rolled before the next append (spec §4.9). The log manager never
// calls this itself; it only accepts one via SetRollingStrategy and
// threads it through to the Log factory for logs created afterward.
type RollingStrategy interface {
	ShouldRoll(activeSizeBytes int64, activeLastModifiedMs int64) bool
}

// RegistryClient is the external registry collaborator the log
// manager announces brokers and topics through (spec §6 "Registry
// client interface (consumed)", §9 "external registry coupling").
// Registration is assumed idempotent on the registry side; the log
// manager must function fully against a no-op implementation.
type RegistryClient interface {
	Start() error
	RegisterBroker(self Node) error
	RegisterTopic(topic string) error
	Close() error
}
