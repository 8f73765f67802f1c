package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides mirrors each field's env tag by hand rather than
// reflecting over it: the struct is small and fixed, and an explicit
// list makes it obvious at a glance which settings are
// environment-overridable.
func applyEnvOverrides(c *Config) {
	if v, ok := os.LookupEnv("JAFKA_LOG_DIR"); ok {
		c.LogDir = v
	}
	if v, ok := getenvInt("JAFKA_NUM_PARTITIONS"); ok {
		c.NumPartitions = v
	}
	if v, ok := getenvInt64("JAFKA_FLUSH_INTERVAL"); ok {
		c.FlushIntervalMs = v
	}
	if v, ok := getenvInt64("JAFKA_FLUSH_SCHEDULER_TICK_MS"); ok {
		c.FlushSchedulerTickMs = v
	}
	if v, ok := getenvInt64("JAFKA_DEFAULT_FLUSH_INTERVAL_MS"); ok {
		c.DefaultFlushIntervalMs = v
	}
	if v, ok := getenvInt64("JAFKA_LOG_CLEANUP_INTERVAL_MS"); ok {
		c.LogCleanupIntervalMs = v
	}
	if v, ok := getenvInt64("JAFKA_LOG_CLEANUP_DEFAULT_AGE_MS"); ok {
		c.LogCleanupDefaultAgeMs = v
	}
	if v, ok := getenvInt64("JAFKA_LOG_RETENTION_SIZE"); ok {
		c.LogRetentionSizeBytes = v
	}
	if v, ok := getenvInt64("JAFKA_LOG_FILE_SIZE"); ok {
		c.LogFileSizeBytes = v
	}
	if v, ok := getenvBool("JAFKA_ENABLE_REGISTRY"); ok {
		c.EnableRegistry = v
	}
	if v, ok := getenvInt("JAFKA_NODE_ID"); ok {
		c.NodeID = v
	}
	if v, ok := os.LookupEnv("JAFKA_BROKER_HOST"); ok {
		c.BrokerHost = v
	}
	if v, ok := getenvInt("JAFKA_BROKER_PORT"); ok {
		c.BrokerPort = v
	}
	if v, ok := os.LookupEnv("JAFKA_RAFT_ADDRESS"); ok {
		c.RaftAddress = v
	}
	if v, ok := os.LookupEnv("JAFKA_SERF_ADDRESS"); ok {
		c.SerfAddress = v
	}
	if v, ok := os.LookupEnv("JAFKA_SERF_JOIN_ADDRESS"); ok {
		c.SerfJoinAddress = v
	}
	if v, ok := getenvBool("JAFKA_BOOTSTRAP"); ok {
		c.Bootstrap = v
	}
	if v, ok := os.LookupEnv("JAFKA_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
}

func getenvInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func getenvInt64(key string) (int64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

func getenvBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}
