package registry

import (
	"encoding/json"
	"testing"

	hraft "github.com/hashicorp/raft"

	"github.com/go-jafka/jafka/types"
)

func TestApplyCommandAddBrokerTracksLatestByNodeID(t *testing.T) {
	f := newFSM()

	if err := f.applyCommand(command{Kind: addBroker, Payload: mustMarshal(t, types.Node{NodeID: 1, Host: "a"})}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := f.applyCommand(command{Kind: addBroker, Payload: mustMarshal(t, types.Node{NodeID: 1, Host: "b"})}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := f.brokerCount(); got != 1 {
		t.Fatalf("expected 1 broker (re-registration overwrites), got %d", got)
	}
	if f.brokers[1].Host != "b" {
		t.Fatalf("expected latest registration to win, got host %q", f.brokers[1].Host)
	}
}

func TestApplyCommandAddTopicIsIdempotent(t *testing.T) {
	f := newFSM()

	for i := 0; i < 3; i++ {
		if err := f.applyCommand(command{Kind: addTopic, Payload: mustMarshal(t, "orders")}); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	if !f.topicExists("orders") {
		t.Fatalf("expected orders to be registered")
	}
	if f.topicExists("clicks") {
		t.Fatalf("did not expect clicks to be registered")
	}
}

func TestApplyCommandRejectsUnknownKind(t *testing.T) {
	f := newFSM()
	err := f.applyCommand(command{Kind: commandKind(99), Payload: mustMarshal(t, "x")})
	if err == nil {
		t.Fatalf("expected an error for an unknown command kind")
	}
}

func TestFSMApplyDecodesAndAppliesRaftLogEntries(t *testing.T) {
	f := newFSM()
	encoded, err := encodeCommand(addTopic, "orders")
	if err != nil {
		t.Fatalf("encodeCommand: %v", err)
	}

	result := f.Apply(&hraft.Log{Data: encoded})
	if result != nil {
		t.Fatalf("expected nil result from a successful apply, got %v", result)
	}
	if !f.topicExists("orders") {
		t.Fatalf("expected orders to be registered after Apply")
	}
}

func TestFSMApplyReturnsErrorOnMalformedEntry(t *testing.T) {
	f := newFSM()
	result := f.Apply(&hraft.Log{Data: []byte("not json")})
	if result == nil {
		t.Fatalf("expected a non-nil error result for a malformed entry")
	}
	if _, ok := result.(error); !ok {
		t.Fatalf("expected result to be an error, got %T", result)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
