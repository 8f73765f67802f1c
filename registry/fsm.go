package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	hraft "github.com/hashicorp/raft"

	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/types"
)

// commandKind is a raft log command type. Adapted from the teacher's
// raft/commands.go CommandType, trimmed to the two announcements the
// log manager actually needs (spec §4.6, §4.7: broker and topic
// registration; no partition/replica commands since replication is an
// explicit non-goal, spec §1).
type commandKind int

const (
	addBroker commandKind = iota
	addTopic
)

// command is a single entry applied to the raft log.
type command struct {
	Kind    commandKind
	Payload json.RawMessage
}

func encodeCommand(kind commandKind, entry any) ([]byte, error) {
	cmd := command{Kind: kind}
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	cmd.Payload = payload
	return json.Marshal(cmd)
}

// fsm is the raft finite-state-machine tracking the "announced" view
// of brokers and topics other cluster members converge on. Adapted
// from the teacher's raft/state.go FSM, trimmed to brokers+topics.
type fsm struct {
	mu      sync.RWMutex
	brokers map[int]types.Node
	topics  map[string]struct{}
}

func newFSM() *fsm {
	return &fsm{
		brokers: make(map[int]types.Node),
		topics:  make(map[string]struct{}),
	}
}

func (f *fsm) applyCommand(cmd command) error {
	switch cmd.Kind {
	case addBroker:
		var node types.Node
		if err := json.Unmarshal(cmd.Payload, &node); err != nil {
			return fmt.Errorf("decode addBroker payload: %w", err)
		}
		f.mu.Lock()
		f.brokers[node.NodeID] = node
		f.mu.Unlock()
	case addTopic:
		var topic string
		if err := json.Unmarshal(cmd.Payload, &topic); err != nil {
			return fmt.Errorf("decode addTopic payload: %w", err)
		}
		f.mu.Lock()
		f.topics[topic] = struct{}{}
		f.mu.Unlock()
	default:
		return fmt.Errorf("unknown registry command kind %v", cmd.Kind)
	}
	return nil
}

// Apply implements raft.FSM.
func (f *fsm) Apply(entry *hraft.Log) any {
	var cmd command
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		return fmt.Errorf("could not parse raft entry: %w", err)
	}
	if err := f.applyCommand(cmd); err != nil {
		logging.Named("registry").Warn("failed applying raft command", "error", err)
		return err
	}
	return nil
}

type noopSnapshot struct{}

func (noopSnapshot) Persist(_ hraft.SnapshotSink) error { return nil }
func (noopSnapshot) Release()                           {}

// Snapshot implements raft.FSM. Registrations are small and re-derived
// from the full command log on restore; a real snapshot is not worth
// the complexity for this scope.
func (f *fsm) Snapshot() (hraft.FSMSnapshot, error) {
	return noopSnapshot{}, nil
}

// Restore implements raft.FSM.
func (f *fsm) Restore(rc io.ReadCloser) error {
	decoder := json.NewDecoder(rc)
	for decoder.More() {
		var cmd command
		if err := decoder.Decode(&cmd); err != nil {
			return fmt.Errorf("could not decode entry during restore: %w", err)
		}
		if err := f.applyCommand(cmd); err != nil {
			return err
		}
	}
	return rc.Close()
}

func (f *fsm) topicExists(topic string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.topics[topic]
	return ok
}

func (f *fsm) brokerCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.brokers)
}
