package logmanager

import (
	"fmt"

	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/types"
)

// Startup performs spec §4.7 startup: if registry integration is
// enabled, register this broker, enqueue every already-loaded topic
// for publication, and release the one-shot startup barrier; then
// start the flush scheduler. Load must have already run.
func (m *Manager) Startup() error {
	if m.cfg.EnableRegistry {
		self := types.Node{NodeID: m.cfg.NodeID}
		if err := m.registryClient.RegisterBroker(self); err != nil {
			return fmt.Errorf("register broker: %w", err)
		}
		for _, topic := range m.AllTopics() {
			m.publisher.enqueue(topic)
		}
		m.startupOnce.Do(func() { close(m.startupDone) })
	}
	m.startFlushScheduler()
	return nil
}

// Close performs spec §4.7 close: stop the flush scheduler (waiting
// for any in-flight tick), close every Log best-effort, and, if
// registry integration is enabled, stop the publisher and close the
// registry client.
func (m *Manager) Close() error {
	log := logging.Named("logmanager")

	m.stopFlushScheduler()
	if m.retentionCancel != nil {
		m.retentionCancel()
	}

	for _, l := range m.AllLogs() {
		if err := l.Close(); err != nil {
			log.Warn("error closing log", "topic", l.TopicName(), "dir", l.Dir(), "error", err)
		}
	}

	if m.cfg.EnableRegistry {
		m.publisher.stop()
		if err := m.registryClient.Close(); err != nil {
			log.Warn("error closing registry client", "error", err)
		}
	}
	return nil
}
