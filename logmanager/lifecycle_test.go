package logmanager

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStartupRegistersBrokerAndEnqueuesExistingTopics(t *testing.T) {
	cfg := testConfig()
	cfg.LogDir = t.TempDir()
	cfg.EnableRegistry = true
	cfg.NodeID = 7
	factory := &fakeLogFactory{}
	registryClient := &fakeRegistryClient{}
	m := New(cfg, factory.factory(), registryClient, nil)

	// An existing topic is one Load recovers from disk: traffic calls
	// such as GetOrCreateLog would block on the startup barrier here.
	if err := os.MkdirAll(filepath.Join(cfg.LogDir, "orders-0"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := m.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}

	select {
	case <-m.startupDone:
	default:
		t.Fatalf("expected startup barrier to be released")
	}

	if len(registryClient.brokers) != 1 || registryClient.brokers[0].NodeID != 7 {
		t.Fatalf("expected broker 7 to be registered, got %v", registryClient.brokers)
	}

	deadline := time.After(time.Second)
	for {
		if len(registryClient.registeredTopics()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for topic registration")
		case <-time.After(time.Millisecond):
		}
	}
	topics := registryClient.registeredTopics()
	if topics[0] != "orders" {
		t.Fatalf("expected orders to be registered, got %v", topics)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestStartupSkipsRegistryWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.LogDir = t.TempDir()
	m, _ := newTestManager(cfg)

	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	if err := m.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseClosesEveryLog(t *testing.T) {
	cfg := testConfig()
	cfg.LogDir = t.TempDir()
	m, factory := newTestManager(cfg)
	ctx := context.Background()

	if _, err := m.GetOrCreateLog(ctx, "orders", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetOrCreateLog(ctx, "clicks", 0); err != nil {
		t.Fatal(err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, fl := range factory.created {
		if !fl.closed {
			t.Fatalf("expected log for topic %q to be closed", fl.TopicName())
		}
	}
}
