package logmanager

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/registry"
	"github.com/go-jafka/jafka/types"
)

// partitionMap is the inner level of the Log Registry (spec §4.1,
// §3): partition index to Log, for a single topic. sync.Map gives us
// the atomic insert-if-absent-with-witness primitive the registry
// needs (LoadOrStore) for free, which is exactly what §9 asks for
// instead of a hand-rolled contains-then-put.
type partitionMap struct {
	logs sync.Map // types.PartitionIndex -> types.Log
}

// Manager is the Log Manager core (spec §2): the registry, loader,
// flush scheduler, retention engine, partition chooser, publisher,
// and lifecycle all live here. It never constructs a Log directly;
// logFactory is the sole collaborator that does, keeping the Log's
// segment-level internals out of scope (spec §1).
type Manager struct {
	cfg        Config
	logFactory LogFactory

	registryClient types.RegistryClient
	scheduler      Scheduler

	// topics maps topic name to *partitionMap. Outer level of the Log
	// Registry (spec §3); sync.Map again gives insert-if-absent with a
	// witness via LoadOrStore.
	topics sync.Map

	// creationMu is the coarse, process-wide mutex guarding Log
	// construction (spec §4.1 rationale, §9).
	creationMu sync.Mutex

	rollingMu sync.RWMutex
	rolling   types.RollingStrategy

	rndMu sync.Mutex
	rnd   *rand.Rand

	publisher *publisher

	startupOnce sync.Once
	startupDone chan struct{}

	loaded atomic.Bool

	flushCancel func()
	flushDone   chan struct{}

	retentionCancel func()

	// onFatalFlush is called instead of logging.Fatal by tests so the
	// fatal-flush escalation path (spec §4.3, §7) can be exercised
	// without killing the test process.
	onFatalFlush func(topic, dir string, err error)
}

// New builds a Manager. registryClient may be nil, in which case a
// registry.NoopClient is installed (spec §9: the log manager must
// function fully against a no-op implementation). scheduler supplies
// the externally injected periodic scheduler the retention task runs
// on (spec §4.2); if nil, TickerScheduler is used.
func New(cfg Config, logFactory LogFactory, registryClient types.RegistryClient, scheduler Scheduler) *Manager {
	if registryClient == nil {
		registryClient = registry.NoopClient{}
	}
	if scheduler == nil {
		scheduler = TickerScheduler{}
	}

	m := &Manager{
		cfg:            cfg,
		logFactory:     logFactory,
		registryClient: registryClient,
		scheduler:      scheduler,
		rolling:        defaultRollingStrategy{maxBytes: cfg.LogFileSizeBytes},
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
		startupDone:    make(chan struct{}),
	}
	m.onFatalFlush = func(topic, dir string, err error) {
		logging.Fatal(logging.Named("logmanager"), "flush failed, halting", "topic", topic, "dir", dir, "error", err)
	}
	if cfg.EnableRegistry {
		m.publisher = newPublisher(registryClient)
	}
	if !cfg.EnableRegistry {
		close(m.startupDone)
	}
	return m
}

// SetRollingStrategy installs the RollingStrategy handed to the Log
// factory for every log created after this call (spec §4.9, §6
// set_rolling_strategy). It does not affect already-constructed logs.
func (m *Manager) SetRollingStrategy(s types.RollingStrategy) {
	m.rollingMu.Lock()
	defer m.rollingMu.Unlock()
	m.rolling = s
}

func (m *Manager) currentRollingStrategy() types.RollingStrategy {
	m.rollingMu.RLock()
	defer m.rollingMu.RUnlock()
	return m.rolling
}

func (m *Manager) partitionCount(topic string) int {
	return m.cfg.partitionCount(topic)
}

func (m *Manager) validatePartition(topic string, partition types.PartitionIndex) error {
	valid := m.partitionCount(topic)
	if topic == "" || partition < 0 || int(partition) >= valid {
		return &types.InvalidPartitionError{Topic: topic, Partition: partition, Valid: valid}
	}
	return nil
}

// awaitStartup blocks on the one-shot startup barrier when registry
// integration is enabled (spec §4.7, §7 Interrupted). If ctx is
// cancelled first, the wait is logged at warn and abandoned — the
// caller proceeds without having waited, matching the spec's
// best-effort interrupted-wait semantics.
func (m *Manager) awaitStartup(ctx context.Context) {
	select {
	case <-m.startupDone:
	case <-ctx.Done():
		logging.Named("logmanager").Warn("interrupted waiting on startup barrier", "error", ctx.Err())
	}
}

// GetLog returns the existing Log for (topic, partition), or nil if
// none has been created yet (spec §4.1 get_log).
func (m *Manager) GetLog(ctx context.Context, topic string, partition types.PartitionIndex) (types.Log, error) {
	m.awaitStartup(ctx)
	if err := m.validatePartition(topic, partition); err != nil {
		return nil, err
	}
	v, ok := m.topics.Load(topic)
	if !ok {
		return nil, nil
	}
	pm := v.(*partitionMap)
	lv, ok := pm.logs.Load(partition)
	if !ok {
		return nil, nil
	}
	return lv.(types.Log), nil
}

// GetOrCreateLog returns the existing Log for (topic, partition),
// constructing one if absent (spec §4.1 get_or_create_log). Exactly
// one Log is ever constructed per pair even under concurrent callers:
// lookup, construction and insertion all happen under creationMu. A
// draft that still finds the slot taken on insertion is closed
// silently and discarded.
func (m *Manager) GetOrCreateLog(ctx context.Context, topic string, partition types.PartitionIndex) (types.Log, error) {
	m.awaitStartup(ctx)
	if err := m.validatePartition(topic, partition); err != nil {
		return nil, err
	}

	actualTopic, loaded := m.topics.LoadOrStore(topic, &partitionMap{})
	pm := actualTopic.(*partitionMap)
	firstEverTopic := !loaded

	if lv, ok := pm.logs.Load(partition); ok {
		return lv.(types.Log), nil
	}

	m.creationMu.Lock()
	// Re-check under the lock: another caller may have created and
	// stored the Log since the lookup above.
	if lv, ok := pm.logs.Load(partition); ok {
		m.creationMu.Unlock()
		return lv.(types.Log), nil
	}
	newLog, err := m.logFactory(m.cfg.LogDir, topic, partition, false, m.currentRollingStrategy())
	if err != nil {
		m.creationMu.Unlock()
		return nil, fmt.Errorf("create log for %s-%d: %w", topic, partition, err)
	}

	actualLog, wonRace := pm.logs.LoadOrStore(partition, newLog)
	m.creationMu.Unlock()
	if wonRace {
		if closeErr := newLog.Close(); closeErr != nil {
			logging.Named("logmanager").Warn("error closing draft log that lost creation race",
				"topic", topic, "partition", partition, "error", closeErr)
		}
		return actualLog.(types.Log), nil
	}

	if firstEverTopic && m.cfg.EnableRegistry {
		m.publisher.enqueue(topic)
	}
	return newLog, nil
}

// ChoosePartition returns a uniformly-random partition in [0, P(topic))
// (spec §4.5).
func (m *Manager) ChoosePartition(topic string) types.PartitionIndex {
	n := m.partitionCount(topic)
	m.rndMu.Lock()
	p := m.rnd.Intn(n)
	m.rndMu.Unlock()
	return types.PartitionIndex(p)
}

// GetOffsets answers an offset lookup for (topic, partition), or the
// static empty-offsets default if the log does not exist (spec §4.8
// get_offsets_before / get_empty_offsets).
func (m *Manager) GetOffsets(ctx context.Context, req types.OffsetRequest) ([]int64, error) {
	l, err := m.GetLog(ctx, req.Topic, req.Partition)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return types.GetEmptyOffsets(req), nil
	}
	return l.GetOffsetsBefore(req)
}

// AllTopics enumerates every topic in the registry (spec §4.1
// all_topics). A topic is registered before its first Log is
// constructed, so a topic whose first construction failed is listed
// even though it has no Log.
func (m *Manager) AllTopics() []string {
	var out []string
	m.topics.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out
}

// AllLogs yields every Log across every topic and partition (spec
// §4.1 all_logs_iter). Order is unspecified.
func (m *Manager) AllLogs() []types.Log {
	var out []types.Log
	m.topics.Range(func(_, v any) bool {
		pm := v.(*partitionMap)
		pm.logs.Range(func(_, lv any) bool {
			out = append(out, lv.(types.Log))
			return true
		})
		return true
	})
	return out
}

// GetTopicPartitionsMap returns the configured per-topic partition
// count overrides (spec §6 get_topic_partitions_map).
func (m *Manager) GetTopicPartitionsMap() map[string]int {
	out := make(map[string]int, len(m.cfg.TopicPartitionsMap))
	for k, v := range m.cfg.TopicPartitionsMap {
		out[k] = v
	}
	return out
}
