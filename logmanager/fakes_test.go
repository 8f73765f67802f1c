package logmanager

import (
	"sync"
	"time"

	"github.com/go-jafka/jafka/types"
)

// fakeSegment is an in-memory stand-in for a storage segment, used so
// retention and flush tests never touch a filesystem.
type fakeSegment struct {
	size         int64
	lastModified int64
	path         string
}

func (s *fakeSegment) Size() int64         { return s.size }
func (s *fakeSegment) LastModified() int64 { return s.lastModified }
func (s *fakeSegment) Path() string        { return s.path }

// fakeLog is a minimal in-memory types.Log used to exercise the
// registry, flush scheduler, and retention engine without a real
// on-disk segment store.
type fakeLog struct {
	mu sync.Mutex

	topic string
	dir   string

	segments []*fakeSegment // oldest first; last is "active" and never deletable

	flushErr      error
	flushCount    int
	lastFlushedMs int64

	closed    bool
	closeErr  error
	closeCalls int
}

func newFakeLog(topic, dir string, segments ...*fakeSegment) *fakeLog {
	if len(segments) == 0 {
		segments = []*fakeSegment{{path: dir + "/00000000000000000000.log"}}
	}
	// Like storage.NewLog, a fresh log counts as flushed at construction.
	return &fakeLog{topic: topic, dir: dir, segments: segments, lastFlushedMs: time.Now().UnixMilli()}
}

func (l *fakeLog) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, s := range l.segments {
		total += s.size
	}
	return total
}

func (l *fakeLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushCount++
	if l.flushErr != nil {
		return l.flushErr
	}
	l.lastFlushedMs++
	return nil
}

func (l *fakeLog) LastFlushedTime() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFlushedMs
}

func (l *fakeLog) TopicName() string { return l.topic }
func (l *fakeLog) Dir() string       { return l.dir }

func (l *fakeLog) MarkDeletedWhile(filter func(types.LogSegment) bool) ([]types.LogSegment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.LogSegment
	for _, s := range l.segments[:len(l.segments)-1] {
		if !filter(s) {
			break
		}
		out = append(out, s)
	}
	return out, nil
}

func (l *fakeLog) DeleteSegment(target types.LogSegment) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.segments) > 0 && l.segments[len(l.segments)-1].Path() == target.Path() {
		return false, nil
	}
	for i, s := range l.segments {
		if s.Path() == target.Path() {
			l.segments = append(l.segments[:i], l.segments[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLog) GetOffsetsBefore(req types.OffsetRequest) ([]int64, error) {
	return []int64{0}, nil
}

func (l *fakeLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeCalls++
	l.closed = true
	return l.closeErr
}

// fakeLogFactory builds LogFactory values backed by fakeLog, recording
// every call it receives.
type fakeLogFactory struct {
	mu      sync.Mutex
	calls   int
	err     error
	created []*fakeLog
}

func (f *fakeLogFactory) factory() LogFactory {
	return func(rootDir, topic string, partition types.PartitionIndex, recover bool, rolling types.RollingStrategy) (types.Log, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls++
		if f.err != nil {
			return nil, f.err
		}
		l := newFakeLog(topic, rootDir+"/"+types.FormatLogDirName(topic, partition))
		f.created = append(f.created, l)
		return l, nil
	}
}

func (f *fakeLogFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRegistryClient records every call for assertion in lifecycle and
// publisher tests.
type fakeRegistryClient struct {
	mu sync.Mutex

	startErr    error
	registerErr error

	startCalls  int
	closeCalls  int
	brokers     []types.Node
	topics      []string
}

func (c *fakeRegistryClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startCalls++
	return c.startErr
}

func (c *fakeRegistryClient) RegisterBroker(self types.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brokers = append(c.brokers, self)
	return c.registerErr
}

func (c *fakeRegistryClient) RegisterTopic(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return nil
}

func (c *fakeRegistryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

func (c *fakeRegistryClient) registeredTopics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.topics))
	copy(out, c.topics)
	return out
}

// fakeScheduler captures the task ScheduleAtFixedRate is given instead
// of running a real ticker, so retention tests can trigger a sweep
// synchronously.
type fakeScheduler struct {
	mu        sync.Mutex
	task      func()
	cancelled bool
}

func (s *fakeScheduler) ScheduleAtFixedRate(initialDelay, period time.Duration, task func()) func() {
	s.mu.Lock()
	s.task = task
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.cancelled = true
		s.mu.Unlock()
	}
}
