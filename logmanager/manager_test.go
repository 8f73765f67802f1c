package logmanager

import (
	"context"
	"sync"
	"testing"

	"github.com/go-jafka/jafka/types"
)

func testConfig() Config {
	return Config{
		LogDir:                 "/unused-in-unit-tests",
		NumPartitions:          4,
		FlushSchedulerTickMs:   50,
		DefaultFlushIntervalMs: 1000,
		LogCleanupIntervalMs:   1000,
		LogCleanupDefaultAgeMs: 1000,
		LogRetentionSizeBytes:  -1,
		LogFileSizeBytes:       1 << 20,
		EnableRegistry:         false,
	}
}

func newTestManager(cfg Config) (*Manager, *fakeLogFactory) {
	factory := &fakeLogFactory{}
	m := New(cfg, factory.factory(), nil, nil)
	return m, factory
}

func TestGetLogReturnsNilWhenAbsent(t *testing.T) {
	m, _ := newTestManager(testConfig())
	l, err := m.GetLog(context.Background(), "orders", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l != nil {
		t.Fatalf("expected nil log, got %v", l)
	}
}

func TestGetOrCreateLogIsIdempotent(t *testing.T) {
	m, factory := newTestManager(testConfig())
	ctx := context.Background()

	a, err := m.GetOrCreateLog(ctx, "orders", 0)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	b, err := m.GetOrCreateLog(ctx, "orders", 0)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if a != b {
		t.Fatalf("expected same Log instance, got distinct logs")
	}
	if factory.calls != 1 {
		t.Fatalf("expected exactly one factory call, got %d", factory.calls)
	}
}

func TestGetOrCreateLogConcurrentRaceConstructsExactlyOne(t *testing.T) {
	m, factory := newTestManager(testConfig())
	ctx := context.Background()

	const n = 32
	results := make([]types.Log, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			l, err := m.GetOrCreateLog(ctx, "clicks", 2)
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			results[i] = l
		}(i)
	}
	wg.Wait()

	first := results[0]
	for i, l := range results {
		if l != first {
			t.Fatalf("result %d diverged from result 0: concurrent callers observed different Log instances", i)
		}
	}
	if factory.calls != 1 {
		t.Fatalf("expected exactly one factory call, got %d", factory.calls)
	}

	// Every constructed draft beyond the winner must have been closed.
	var open int
	for _, fl := range factory.created {
		if !fl.closed {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open log (the winner), got %d open out of %d created", open, len(factory.created))
	}
}

func TestGetOrCreateLogValidatesPartition(t *testing.T) {
	m, _ := newTestManager(testConfig())
	ctx := context.Background()

	_, err := m.GetOrCreateLog(ctx, "orders", 99)
	if err == nil {
		t.Fatalf("expected InvalidPartitionError, got nil")
	}
	if _, ok := err.(*types.InvalidPartitionError); !ok {
		t.Fatalf("expected *types.InvalidPartitionError, got %T: %v", err, err)
	}
}

func TestGetOrCreateLogEnqueuesOnlyFirstTopicEverCreated(t *testing.T) {
	cfg := testConfig()
	cfg.EnableRegistry = true
	m, _ := newTestManager(cfg)
	// Startup never runs here, so the startup barrier stays closed; an
	// already-cancelled context makes awaitStartup return at once.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.GetOrCreateLog(ctx, "orders", 0); err != nil {
		t.Fatalf("create partition 0: %v", err)
	}
	if _, err := m.GetOrCreateLog(ctx, "orders", 1); err != nil {
		t.Fatalf("create partition 1: %v", err)
	}

	topic := m.publisher.queue.dequeue()
	if topic != "orders" {
		t.Fatalf("expected exactly one enqueue of %q, got %q", "orders", topic)
	}
	if n := len(m.publisher.queue.items); n != 0 {
		t.Fatalf("expected exactly one enqueue of %q, %d more still queued", "orders", n)
	}
}

func TestChoosePartitionStaysInRange(t *testing.T) {
	cfg := testConfig()
	cfg.NumPartitions = 3
	m, _ := newTestManager(cfg)

	for i := 0; i < 200; i++ {
		p := m.ChoosePartition("orders")
		if p < 0 || int(p) >= 3 {
			t.Fatalf("partition %d out of range [0,3)", p)
		}
	}
}

func TestGetOffsetsReturnsEmptyDefaultForMissingLog(t *testing.T) {
	m, _ := newTestManager(testConfig())
	offsets, err := m.GetOffsets(context.Background(), types.OffsetRequest{Topic: "orders", Partition: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offsets) != 0 {
		t.Fatalf("expected empty offsets, got %v", offsets)
	}
}

func TestAllTopicsAndAllLogs(t *testing.T) {
	m, _ := newTestManager(testConfig())
	ctx := context.Background()

	if _, err := m.GetOrCreateLog(ctx, "orders", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetOrCreateLog(ctx, "orders", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetOrCreateLog(ctx, "clicks", 0); err != nil {
		t.Fatal(err)
	}

	topics := m.AllTopics()
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d: %v", len(topics), topics)
	}
	logs := m.AllLogs()
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
}

func TestGetTopicPartitionsMapReturnsACopy(t *testing.T) {
	cfg := testConfig()
	cfg.TopicPartitionsMap = map[string]int{"orders": 8}
	m, _ := newTestManager(cfg)

	got := m.GetTopicPartitionsMap()
	got["orders"] = 99

	if m.cfg.TopicPartitionsMap["orders"] != 8 {
		t.Fatalf("mutating the returned map must not affect Config")
	}
}

func TestAwaitStartupProceedsWhenRegistryDisabled(t *testing.T) {
	m, _ := newTestManager(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// startupDone is closed immediately at construction when registry
	// integration is disabled, so this must never block even with an
	// already-cancelled context.
	m.awaitStartup(ctx)
}
