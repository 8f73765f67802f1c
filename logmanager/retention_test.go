package logmanager

import (
	"testing"

	"github.com/go-jafka/jafka/types"
)

func TestCleanupExpiredSegmentsDeletesOldestFirstStoppingAtSurvivor(t *testing.T) {
	cfg := testConfig()
	cfg.LogCleanupDefaultAgeMs = 100
	m, _ := newTestManager(cfg)

	now := int64(1_000_000)
	l := newFakeLog("orders", "/data/orders-0",
		&fakeSegment{path: "seg0", lastModified: now - 500}, // expired
		&fakeSegment{path: "seg1", lastModified: now - 50},  // not expired: stop here
		&fakeSegment{path: "seg2", lastModified: now},       // active, never offered
	)

	deleted := m.cleanupExpiredSegments(l, now)

	if deleted != 1 {
		t.Fatalf("expected 1 deleted segment, got %d", deleted)
	}
	if len(l.segments) != 2 {
		t.Fatalf("expected 2 remaining segments, got %d", len(l.segments))
	}
	if l.segments[0].path != "seg1" {
		t.Fatalf("expected seg1 to survive as the new oldest, got %q", l.segments[0].path)
	}
}

func TestCleanupSegmentsToMaintainSizeIsNoopWhenUnbounded(t *testing.T) {
	cfg := testConfig()
	cfg.LogRetentionSizeBytes = -1
	m, _ := newTestManager(cfg)

	l := newFakeLog("orders", "/data/orders-0",
		&fakeSegment{path: "seg0", size: 1000},
		&fakeSegment{path: "seg1", size: 1000},
	)

	if got := m.cleanupSegmentsToMaintainSize(l); got != 0 {
		t.Fatalf("expected no deletions when unbounded, got %d", got)
	}
}

func TestCleanupSegmentsToMaintainSizeIsNoopUnderQuota(t *testing.T) {
	cfg := testConfig()
	cfg.LogRetentionSizeBytes = 10_000
	m, _ := newTestManager(cfg)

	l := newFakeLog("orders", "/data/orders-0",
		&fakeSegment{path: "seg0", size: 100},
		&fakeSegment{path: "seg1", size: 100},
	)

	if got := m.cleanupSegmentsToMaintainSize(l); got != 0 {
		t.Fatalf("expected no deletions under quota, got %d", got)
	}
}

func TestCleanupSegmentsToMaintainSizeDeletesOldestWithoutDroppingBelowQuota(t *testing.T) {
	cfg := testConfig()
	cfg.LogRetentionSizeBytes = 150
	m, _ := newTestManager(cfg)

	l := newFakeLog("orders", "/data/orders-0",
		&fakeSegment{path: "seg0", size: 100},
		&fakeSegment{path: "seg1", size: 100},
		&fakeSegment{path: "seg2", size: 100}, // active
	)
	// total = 300, quota = 150, diff = 150; deleting seg0 (100) leaves
	// diff = 50 (>= 0, accepted); seg1 would take it to -50, so the scan
	// stops there and seg1 survives (remaining size 200).

	got := m.cleanupSegmentsToMaintainSize(l)
	if got != 1 {
		t.Fatalf("expected 1 segment deleted, got %d", got)
	}
	if len(l.segments) != 2 {
		t.Fatalf("expected 2 remaining segments, got %d", len(l.segments))
	}
	if l.segments[0].path != "seg1" {
		t.Fatalf("expected seg1 to survive, got %q", l.segments[0].path)
	}
}

func TestDeleteSegmentsCountsOnlySuccessfulUnlinks(t *testing.T) {
	m, _ := newTestManager(testConfig())

	l := newFakeLog("orders", "/data/orders-0",
		&fakeSegment{path: "seg0"},
		&fakeSegment{path: "seg1"}, // active
	)

	// Offer the active segment alongside a real one: DeleteSegment must
	// refuse the active one (false, nil), and the counter must only
	// count the segment that actually unlinked.
	offered := []types.LogSegment{l.segments[0], l.segments[1]}

	deleted := m.deleteSegments(l, offered)
	if deleted != 1 {
		t.Fatalf("expected exactly 1 successful unlink counted, got %d", deleted)
	}
}
