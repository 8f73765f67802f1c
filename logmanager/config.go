// Package logmanager implements the Log Manager core: a topic-
// partitioned registry of append-only logs, a loader that recovers
// it from disk at startup, a dedicated flush scheduler, an
// age/size retention engine, a partition chooser, and an async
// registry publisher. It never touches segment-level I/O, the wire
// protocol, the registry wire format, or logging transport directly —
// those are contracts it consumes (types.Log, types.RegistryClient,
// types.RollingStrategy), injected by the caller.
package logmanager

import "github.com/go-jafka/jafka/types"

// Config bundles every option the log manager itself recognizes. It
// does not know how to load YAML or environment variables; package
// config builds one of these and hands it over.
type Config struct {
	// LogDir is the root directory scanned by Load and under which
	// every (topic, partition) subdirectory lives.
	LogDir string

	// NumPartitions is the default partition count for topics with no
	// entry in TopicPartitionsMap. Must be >= 1.
	NumPartitions int
	// TopicPartitionsMap overrides NumPartitions per topic.
	TopicPartitionsMap map[string]int

	// FlushSchedulerTickMs is the flush scheduler's own tick rate.
	FlushSchedulerTickMs int64
	// DefaultFlushIntervalMs is the flush interval used for topics
	// absent from FlushIntervalMap.
	DefaultFlushIntervalMs int64
	// FlushIntervalMap overrides DefaultFlushIntervalMs per topic.
	FlushIntervalMap map[string]int64

	// LogCleanupIntervalMs is the retention sweep period, installed on
	// the externally supplied Scheduler.
	LogCleanupIntervalMs int64
	// LogCleanupDefaultAgeMs is the default max segment age used for
	// topics absent from LogRetentionMSMap.
	LogCleanupDefaultAgeMs int64
	// LogRetentionMSMap overrides LogCleanupDefaultAgeMs per topic.
	// Converted from hours to milliseconds by package config.
	LogRetentionMSMap map[string]int64
	// LogRetentionSizeBytes bounds the aggregate size per log;
	// negative means unbounded.
	LogRetentionSizeBytes int64

	// LogFileSizeBytes is the default segment rolling threshold,
	// passed to the Log factory as the default RollingStrategy.
	LogFileSizeBytes int64

	// EnableRegistry toggles all external-registry interactions: the
	// publisher, broker/topic registration, and the startup barrier
	// (spec §6 enableZookeeper).
	EnableRegistry bool
	// NodeID identifies this broker to the registry client.
	NodeID int
}

// partitionCount returns P(topic): the per-topic override if present,
// else NumPartitions.
func (c Config) partitionCount(topic string) int {
	if n, ok := c.TopicPartitionsMap[topic]; ok {
		return n
	}
	return c.NumPartitions
}

// flushIntervalMs returns the effective flush interval for a topic.
func (c Config) flushIntervalMs(topic string) int64 {
	if ms, ok := c.FlushIntervalMap[topic]; ok {
		return ms
	}
	return c.DefaultFlushIntervalMs
}

// retentionAgeMs returns the effective max segment age for a topic.
func (c Config) retentionAgeMs(topic string) int64 {
	if ms, ok := c.LogRetentionMSMap[topic]; ok {
		return ms
	}
	return c.LogCleanupDefaultAgeMs
}

// defaultRollingStrategy is the size-based RollingStrategy installed
// when the caller never calls SetRollingStrategy before Load (spec
// §4.9: "if none is provided before load, the default is installed").
// The concrete file-backed Log implementation in package storage
// defines an equivalent FixedSizeRollingStrategy for its own direct
// callers; this one exists so logmanager's default never has to
// import storage, keeping the core decoupled from the concrete Log
// implementation per spec §1.
type defaultRollingStrategy struct {
	maxBytes int64
}

func (s defaultRollingStrategy) ShouldRoll(activeSizeBytes int64, _ int64) bool {
	return activeSizeBytes >= s.maxBytes
}

// LogFactory constructs or recovers the Log backing a (topic,
// partition) pair. recover is true when called from Load for a
// directory already on disk; false when called from
// get_or_create_log for a brand-new pair. Concrete implementations
// live in package storage.
type LogFactory func(rootDir, topic string, partition types.PartitionIndex, recover bool, rolling types.RollingStrategy) (types.Log, error)
