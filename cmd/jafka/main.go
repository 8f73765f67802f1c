// Command jafka runs a single Log Manager broker: it loads
// configuration, recovers the on-disk log registry, optionally joins a
// raft/serf cluster for broker and topic registration, and serves the
// wire protocol until signaled to shut down. Grounded on the teacher's
// root main.go wiring order (load config, build broker, Startup,
// ListenAndServe, graceful shutdown on signal).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-jafka/jafka/broker"
	"github.com/go-jafka/jafka/config"
	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/logmanager"
	"github.com/go-jafka/jafka/registry"
	"github.com/go-jafka/jafka/storage"
	"github.com/go-jafka/jafka/types"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "jafka",
		Short: "jafka runs a single Log Manager broker",
		RunE:  run,
	}

	flags := root.Flags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	flags.String("log-dir", "", "override logDir")
	flags.Int("num-partitions", 0, "override numPartitions (0 keeps config/default)")
	flags.Bool("enable-registry", false, "override enableZookeeper")
	flags.Int("node-id", 0, "override nodeId")
	flags.String("broker-host", "", "override brokerHost")
	flags.Int("broker-port", 0, "override brokerPort")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("bootstrap", false, "bootstrap a new raft/serf cluster on this node")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	logging.SetLevel(cfg.LogLevel)
	log := logging.Named("cmd")

	mgrCfg := logmanager.Config{
		LogDir:                 cfg.LogDir,
		NumPartitions:          cfg.NumPartitions,
		TopicPartitionsMap:     cfg.TopicPartitionsMap,
		FlushSchedulerTickMs:   cfg.FlushSchedulerTickMs,
		DefaultFlushIntervalMs: cfg.DefaultFlushIntervalMs,
		FlushIntervalMap:       cfg.FlushIntervalMap,
		LogCleanupIntervalMs:   cfg.LogCleanupIntervalMs,
		LogCleanupDefaultAgeMs: cfg.LogCleanupDefaultAgeMs,
		LogRetentionMSMap:      cfg.RetentionMSMap(),
		LogRetentionSizeBytes:  cfg.LogRetentionSizeBytes,
		LogFileSizeBytes:       cfg.LogFileSizeBytes,
		EnableRegistry:         cfg.EnableRegistry,
		NodeID:                 cfg.NodeID,
	}

	var registryClient types.RegistryClient
	if cfg.EnableRegistry {
		registryClient = registry.NewRaftClient(registry.Config{
			NodeID:          cfg.NodeID,
			DataDir:         filepath.Join(cfg.LogDir, ".registry"),
			RaftID:          fmt.Sprintf("node-%d", cfg.NodeID),
			RaftAddress:     cfg.RaftAddress,
			SerfAddress:     cfg.SerfAddress,
			SerfJoinAddress: cfg.SerfJoinAddress,
			Bootstrap:       cfg.Bootstrap,
		})
	}

	manager := logmanager.New(mgrCfg, storage.Factory, registryClient, nil)
	manager.SetRollingStrategy(storage.FixedSizeRollingStrategy{MaxBytes: cfg.LogFileSizeBytes})

	if err := manager.Load(); err != nil {
		return fmt.Errorf("load log registry: %w", err)
	}
	if err := manager.Startup(); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	srv := broker.NewServer(manager)
	addr := fmt.Sprintf("%s:%d", cfg.BrokerHost, cfg.BrokerPort)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("server stopped", "error", err)
		}
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig)
	}

	if err := srv.Close(); err != nil {
		log.Warn("error closing server", "error", err)
	}
	if err := manager.Close(); err != nil {
		log.Warn("error closing log manager", "error", err)
	}
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if v, _ := flags.GetString("log-dir"); v != "" {
		cfg.LogDir = v
	}
	if v, _ := flags.GetInt("num-partitions"); v > 0 {
		cfg.NumPartitions = v
	}
	if flags.Changed("enable-registry") {
		cfg.EnableRegistry, _ = flags.GetBool("enable-registry")
	}
	if v, _ := flags.GetInt("node-id"); v != 0 {
		cfg.NodeID = v
	}
	if v, _ := flags.GetString("broker-host"); v != "" {
		cfg.BrokerHost = v
	}
	if v, _ := flags.GetInt("broker-port"); v != 0 {
		cfg.BrokerPort = v
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("bootstrap") {
		cfg.Bootstrap, _ = flags.GetBool("bootstrap")
	}
}
