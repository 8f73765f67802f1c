package logmanager

import (
	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/types"
	"github.com/go-jafka/jafka/utils"
)

// runRetentionSweep walks every Log and applies age-based then
// size-based cleanup, summing counts (spec §4.4). It is installed on
// the externally supplied Scheduler by Load.
func (m *Manager) runRetentionSweep() {
	log := logging.Named("logmanager")
	now := int64(utils.NowAsUnixMilli())

	var totalDeleted int
	for _, l := range m.AllLogs() {
		totalDeleted += m.cleanupExpiredSegments(l, now)
		totalDeleted += m.cleanupSegmentsToMaintainSize(l)
	}
	log.Debug("retention sweep complete", "segments_deleted", totalDeleted)
}

// cleanupExpiredSegments deletes non-active segments older than the
// effective retention age, oldest-first, stopping at the first
// survivor (spec §4.4 cleanupExpiredSegments).
func (m *Manager) cleanupExpiredSegments(l types.Log, now int64) int {
	threshold := m.cfg.retentionAgeMs(l.TopicName())
	marked, err := l.MarkDeletedWhile(func(seg types.LogSegment) bool {
		return now-seg.LastModified() > threshold
	})
	if err != nil {
		logging.Named("logmanager").Error("age-based mark_deleted_while failed", "topic", l.TopicName(), "error", err)
		return 0
	}
	return m.deleteSegments(l, marked)
}

// cleanupSegmentsToMaintainSize deletes the oldest non-active segments
// for as long as removing each one still leaves the Log's aggregate
// size at or above logRetentionSize, or is a no-op if unbounded or
// already under quota (spec §4.4 cleanupSegmentsToMaintainSize). It
// never deletes the segment that would take the Log below the quota,
// so the Log can remain above logRetentionSize after the sweep.
func (m *Manager) cleanupSegmentsToMaintainSize(l types.Log) int {
	if m.cfg.LogRetentionSizeBytes < 0 {
		return 0
	}
	if l.Size() < m.cfg.LogRetentionSizeBytes {
		return 0
	}

	diff := l.Size() - m.cfg.LogRetentionSizeBytes
	marked, err := l.MarkDeletedWhile(func(seg types.LogSegment) bool {
		diff -= seg.Size()
		return diff >= 0
	})
	if err != nil {
		logging.Named("logmanager").Error("size-based mark_deleted_while failed", "topic", l.TopicName(), "error", err)
		return 0
	}
	return m.deleteSegments(l, marked)
}

// deleteSegments unlinks each marked segment independently, logging
// {log name, path, success} per segment at warn level (spec §4.4
// deleteSegments). The returned count is the number of segments
// actually unlinked — not the source's inverted counter (spec §9).
func (m *Manager) deleteSegments(l types.Log, segments []types.LogSegment) int {
	log := logging.Named("logmanager")
	deleted := 0
	for _, seg := range segments {
		ok, err := l.DeleteSegment(seg)
		if err != nil {
			log.Warn("segment deletion attempt", "log", l.TopicName(), "path", seg.Path(), "success", ok, "error", err)
		} else {
			log.Warn("segment deletion attempt", "log", l.TopicName(), "path", seg.Path(), "success", ok)
		}
		if ok {
			deleted++
		}
	}
	return deleted
}
