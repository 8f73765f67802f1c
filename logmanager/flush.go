package logmanager

import (
	"time"

	"github.com/go-jafka/jafka/utils"
)

// startFlushScheduler launches the dedicated single-worker flush
// scheduler goroutine (spec §4.3). It is distinct from the
// externally-supplied Scheduler the retention task runs on.
func (m *Manager) startFlushScheduler() {
	stop := make(chan struct{})
	done := make(chan struct{})
	m.flushDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Duration(m.cfg.FlushSchedulerTickMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.flushTick()
			case <-stop:
				return
			}
		}
	}()

	m.flushCancel = func() { close(stop) }
}

// stopFlushScheduler signals the flush goroutine to stop and waits for
// the in-flight tick to finish (spec §4.7 close step 1).
func (m *Manager) stopFlushScheduler() {
	if m.flushCancel == nil {
		return
	}
	m.flushCancel()
	<-m.flushDone
}

// flushTick runs one flush sweep over every registered Log (spec
// §4.3). Any error returned by Flush is passed to onFatalFlush, which
// halts the process by default, and the sweep stops there; errors are
// not told apart, so no flush error is merely logged.
func (m *Manager) flushTick() {
	now := int64(utils.NowAsUnixMilli())
	for _, l := range m.AllLogs() {
		interval := m.cfg.flushIntervalMs(l.TopicName())
		sinceLastFlush := now - l.LastFlushedTime()
		if sinceLastFlush < interval {
			continue
		}
		if err := l.Flush(); err != nil {
			m.onFatalFlush(l.TopicName(), l.Dir(), err)
			return
		}
	}
}
