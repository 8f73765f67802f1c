// Package logging provides the structured logger shared by every
// package in this repository. It wraps hashicorp/go-hclog rather than
// a hand-rolled level filter so that the logger handed to
// hashicorp/raft and hashicorp/serf (raft.Config.Logger / serf's
// memberlist config) speaks the same structured format as everything
// else.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu   sync.RWMutex
	root = hclog.New(&hclog.LoggerOptions{
		Name:  "jafka",
		Level: hclog.Info,
		Color: hclog.AutoColor,
	})
)

// SetLevel sets the log level for the root logger and every named
// sub-logger derived from it. Recognized values: "debug", "info",
// "warn", "error".
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	root.SetLevel(hclog.LevelFromString(strings.ToLower(level)))
}

// Root returns the shared root logger.
func Root() hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Named returns a sub-logger tagged with component, e.g.
// logging.Named("logmanager") used by the flush scheduler and
// retention engine so their output can be filtered independently.
func Named(component string) hclog.Logger {
	return Root().Named(component)
}

// Fatal logs msg at error level and halts the process immediately with
// a non-zero exit code, bypassing graceful shutdown. Reserved for the
// flush scheduler's fatal I/O escalation (spec §4.3, §7): a failed
// flush leaves durability guarantees unverifiable.
func Fatal(logger hclog.Logger, msg string, args ...interface{}) {
	logger.Error(msg, args...)
	os.Exit(1)
}
