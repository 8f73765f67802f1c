package logmanager

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/types"
	"github.com/go-jafka/jafka/utils"
)

// Load performs the startup scan and recovery described in spec §4.2.
// It may be called at most once per Manager.
func (m *Manager) Load() error {
	if !m.loaded.CompareAndSwap(false, true) {
		return fmt.Errorf("logmanager: Load called more than once")
	}

	log := logging.Named("logmanager")

	info, err := os.Stat(m.cfg.LogDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := utils.EnsurePath(m.cfg.LogDir, true); mkErr != nil {
			return &types.ConfigError{Path: m.cfg.LogDir, Err: mkErr}
		}
	case err != nil:
		return &types.ConfigError{Path: m.cfg.LogDir, Err: err}
	case !info.IsDir():
		return &types.ConfigError{Path: m.cfg.LogDir, Err: fmt.Errorf("exists but is not a directory")}
	}

	entries, err := os.ReadDir(m.cfg.LogDir)
	if err != nil {
		return &types.ConfigError{Path: m.cfg.LogDir, Err: err}
	}

	for _, e := range entries {
		if !e.IsDir() {
			log.Warn("skipping non-directory entry under log root", "name", e.Name())
			continue
		}
		topic, partition, parseErr := types.ParseLogDirName(e.Name())
		if parseErr != nil {
			log.Warn("skipping directory with unparseable name", "name", e.Name(), "error", parseErr)
			continue
		}

		recovered, loadErr := m.logFactory(m.cfg.LogDir, topic, partition, true, m.currentRollingStrategy())
		if loadErr != nil {
			log.Warn("failed to recover log, skipping", "dir", filepath.Join(m.cfg.LogDir, e.Name()), "error", loadErr)
			continue
		}

		actual, _ := m.topics.LoadOrStore(topic, &partitionMap{})
		pm := actual.(*partitionMap)
		pm.logs.Store(partition, recovered)
	}

	m.retentionCancel = m.scheduler.ScheduleAtFixedRate(
		1*time.Minute,
		time.Duration(m.cfg.LogCleanupIntervalMs)*time.Millisecond,
		m.runRetentionSweep,
	)

	if m.cfg.EnableRegistry {
		if startErr := m.registryClient.Start(); startErr != nil {
			return fmt.Errorf("start registry client: %w", startErr)
		}
		m.publisher.start()
	}

	return nil
}
