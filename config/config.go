// Package config loads the broker's on-disk and environment
// configuration into a single Config value: the settings spec.md §6
// recognizes, plus the broker networking and clustering fields the
// teacher's types.Configuration carries. It knows nothing about
// logmanager, storage, or registry; cmd/jafka is the only caller that
// converts a Config into their respective Config types.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the YAML+env-tagged configuration surface. yaml tags match
// spec.md §6's option names; env tags are the override a deployer can
// set without touching the file, matching the teacher's pack-wide
// convention for naming them JAFKA_*.
type Config struct {
	LogDir string `yaml:"logDir" env:"JAFKA_LOG_DIR"`

	NumPartitions      int            `yaml:"numPartitions" env:"JAFKA_NUM_PARTITIONS"`
	TopicPartitionsMap map[string]int `yaml:"topicPartitionsMap"`

	FlushIntervalMs        int64            `yaml:"flushInterval" env:"JAFKA_FLUSH_INTERVAL"`
	FlushSchedulerTickMs   int64            `yaml:"flushSchedulerThreadRate" env:"JAFKA_FLUSH_SCHEDULER_TICK_MS"`
	DefaultFlushIntervalMs int64            `yaml:"defaultFlushIntervalMs" env:"JAFKA_DEFAULT_FLUSH_INTERVAL_MS"`
	FlushIntervalMap       map[string]int64 `yaml:"flushIntervalMap"`

	LogCleanupIntervalMs   int64         `yaml:"logCleanupIntervalMs" env:"JAFKA_LOG_CLEANUP_INTERVAL_MS"`
	LogCleanupDefaultAgeMs int64         `yaml:"logCleanupDefaultAgeMs" env:"JAFKA_LOG_CLEANUP_DEFAULT_AGE_MS"`
	LogRetentionHoursMap   map[string]int `yaml:"logRetentionHoursMap"`
	LogRetentionSizeBytes  int64         `yaml:"logRetentionSize" env:"JAFKA_LOG_RETENTION_SIZE"`

	LogFileSizeBytes int64 `yaml:"logFileSize" env:"JAFKA_LOG_FILE_SIZE"`

	EnableRegistry bool `yaml:"enableZookeeper" env:"JAFKA_ENABLE_REGISTRY"`

	NodeID     int    `yaml:"nodeId" env:"JAFKA_NODE_ID"`
	BrokerHost string `yaml:"brokerHost" env:"JAFKA_BROKER_HOST"`
	BrokerPort int    `yaml:"brokerPort" env:"JAFKA_BROKER_PORT"`

	RaftAddress     string `yaml:"raftAddress" env:"JAFKA_RAFT_ADDRESS"`
	SerfAddress     string `yaml:"serfAddress" env:"JAFKA_SERF_ADDRESS"`
	SerfJoinAddress string `yaml:"serfJoinAddress" env:"JAFKA_SERF_JOIN_ADDRESS"`
	Bootstrap       bool   `yaml:"bootstrap" env:"JAFKA_BOOTSTRAP"`

	LogLevel string `yaml:"logLevel" env:"JAFKA_LOG_LEVEL"`
}

// Default returns the out-of-the-box configuration a single standalone
// broker runs with (no clustering, generous defaults), mirroring the
// teacher's hardcoded /tmp/MonKafka logDir and :9092 broker port.
func Default() *Config {
	return &Config{
		LogDir:                 filepath.Join(os.TempDir(), "jafka"),
		NumPartitions:          1,
		FlushSchedulerTickMs:   1000,
		DefaultFlushIntervalMs: 1000,
		LogCleanupIntervalMs:   60_000,
		LogCleanupDefaultAgeMs: 7 * 24 * 60 * 60 * 1000,
		LogRetentionSizeBytes:  -1,
		LogFileSizeBytes:       1 << 30,
		EnableRegistry:         false,
		BrokerHost:             "0.0.0.0",
		BrokerPort:             9092,
		RaftAddress:            "127.0.0.1:9292",
		SerfAddress:            "127.0.0.1:9392",
		LogLevel:               "info",
	}
}

// Load reads path as YAML over top of Default, then applies any
// JAFKA_* environment overrides. logRetentionHoursMap stays in hours;
// RetentionMSMap converts it to milliseconds on request. A missing
// file is not an error: Default alone, plus environment overrides, is
// a valid configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %q: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through with defaults
		default:
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// RetentionMSMap converts logRetentionHoursMap to the millisecond map
// logmanager.Config expects (hours × 3_600_000), the exact round-trip
// named in spec.md §6/§8.
func (c *Config) RetentionMSMap() map[string]int64 {
	if len(c.LogRetentionHoursMap) == 0 {
		return nil
	}
	out := make(map[string]int64, len(c.LogRetentionHoursMap))
	for topic, hours := range c.LogRetentionHoursMap {
		out[topic] = int64(hours) * 3_600_000
	}
	return out
}
