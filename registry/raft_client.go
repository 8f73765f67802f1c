package registry

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	hraft "github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/hashicorp/serf/serf"

	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/types"
)

const serfEventChSize = 2048

// Config configures a RaftClient. Grounded on the fields the teacher's
// types.Configuration test fixtures carry for clustering
// (NodeID, RaftID, RaftAddress, SerfAddress, SerfJoinAddress, Bootstrap).
type Config struct {
	NodeID int
	// DataDir holds this node's raft log, snapshots, and serf snapshot.
	DataDir string

	RaftID      string
	RaftAddress string

	SerfAddress     string
	SerfJoinAddress string

	// Bootstrap starts a brand-new single-node raft cluster. Set only
	// on the first node of a fresh cluster.
	Bootstrap bool
}

// RaftClient is a types.RegistryClient backed by hashicorp/raft
// (consensus over broker/topic registrations applied through a
// raft.FSM) and hashicorp/serf (gossip membership used only to learn
// peer raft addresses), adapted from the teacher's
// protocol/broker.go SetupRaft/SetupSerf and raft/{fsm,state,commands}.go.
type RaftClient struct {
	cfg Config
	fsm *fsm

	raft *hraft.Raft
	serf *serf.Serf

	serfEventCh chan serf.Event
	shutdownCh  chan struct{}
}

// NewRaftClient builds a RaftClient that has not yet joined or
// bootstrapped any cluster; call Start to do so.
func NewRaftClient(cfg Config) *RaftClient {
	if cfg.RaftID == "" {
		cfg.RaftID = fmt.Sprintf("raft-broker-%d", cfg.NodeID)
	}
	return &RaftClient{
		cfg:         cfg,
		fsm:         newFSM(),
		serfEventCh: make(chan serf.Event, serfEventChSize),
		shutdownCh:  make(chan struct{}),
	}
}

var _ types.RegistryClient = (*RaftClient)(nil)

// Start sets up raft and serf and, if SerfJoinAddress is configured,
// joins the existing cluster. Mirrors the teacher's Broker.Startup
// raft/serf bring-up, trimmed to registry concerns only.
func (c *RaftClient) Start() error {
	if err := c.setupRaft(); err != nil {
		return fmt.Errorf("raft setup: %w", err)
	}
	if err := c.setupSerf(); err != nil {
		return fmt.Errorf("serf setup: %w", err)
	}
	go c.handleSerfEvents()
	return nil
}

// RegisterBroker applies an addBroker command to the raft log.
func (c *RaftClient) RegisterBroker(self types.Node) error {
	return c.apply(addBroker, self)
}

// RegisterTopic applies an addTopic command to the raft log, unless
// this node already observes the topic as registered (registration
// is idempotent, spec §6).
func (c *RaftClient) RegisterTopic(topic string) error {
	if c.fsm.topicExists(topic) {
		return nil
	}
	return c.apply(addTopic, topic)
}

func (c *RaftClient) apply(kind commandKind, entry any) error {
	bytes, err := encodeCommand(kind, entry)
	if err != nil {
		return err
	}
	future := c.raft.Apply(bytes, 10*time.Second)
	return future.Error()
}

// Close leaves the serf cluster, gives peers a moment to notice, then
// shuts down raft. Mirrors the teacher's Broker.Shutdown, minus the
// leadership-transfer dance (this client's client-side role never
// needs to stay the raft leader).
func (c *RaftClient) Close() error {
	close(c.shutdownCh)
	var firstErr error
	if c.serf != nil {
		if err := c.serf.Leave(); err != nil {
			logging.Named("registry").Error("serf leave failed", "error", err)
			firstErr = err
		}
		time.Sleep(1 * time.Second)
		if err := c.serf.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.raft != nil {
		if err := c.raft.Shutdown().Error(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *RaftClient) setupRaft() error {
	dir := filepath.Join(c.cfg.DataDir, "raft-"+c.cfg.RaftID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create raft data dir: %w", err)
	}

	store, err := raftboltdb.NewBoltStore(filepath.Join(dir, "bolt"))
	if err != nil {
		return fmt.Errorf("create bolt store: %w", err)
	}
	snapshots, err := hraft.NewFileSnapshotStore(filepath.Join(dir, "snapshot"), 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("create snapshot store: %w", err)
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", c.cfg.RaftAddress)
	if err != nil {
		return fmt.Errorf("resolve raft address: %w", err)
	}
	transport, err := hraft.NewTCPTransport(c.cfg.RaftAddress, tcpAddr, 10, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("create tcp transport: %w", err)
	}

	raftCfg := hraft.DefaultConfig()
	raftCfg.Logger = hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
	raftCfg.LocalID = hraft.ServerID(c.cfg.RaftID)

	c.raft, err = hraft.NewRaft(raftCfg, c.fsm, store, store, snapshots, transport)
	if err != nil {
		return fmt.Errorf("create raft instance: %w", err)
	}

	if c.cfg.Bootstrap {
		hasState, err := hraft.HasExistingState(store, store, snapshots)
		if err != nil {
			return err
		}
		if !hasState {
			future := c.raft.BootstrapCluster(hraft.Configuration{
				Servers: []hraft.Server{
					{ID: hraft.ServerID(c.cfg.RaftID), Address: transport.LocalAddr()},
				},
			})
			if err := future.Error(); err != nil {
				return fmt.Errorf("bootstrap cluster: %w", err)
			}
		}
	}
	return nil
}

func (c *RaftClient) setupSerf() error {
	conf := serf.DefaultConfig()
	conf.Init()
	conf.NodeName = c.cfg.RaftID

	bindIP, bindPortStr, err := net.SplitHostPort(c.cfg.SerfAddress)
	if err != nil {
		return fmt.Errorf("split serf address: %w", err)
	}
	bindPort, err := strconv.Atoi(bindPortStr)
	if err != nil {
		return fmt.Errorf("parse serf port: %w", err)
	}
	conf.MemberlistConfig.BindAddr = bindIP
	conf.MemberlistConfig.BindPort = bindPort

	conf.Tags["role"] = "broker"
	conf.Tags["node_id"] = strconv.Itoa(c.cfg.NodeID)
	conf.Tags["raft_server_id"] = c.cfg.RaftID
	conf.Tags["raft_addr"] = c.cfg.RaftAddress
	conf.Tags["serf_addr"] = c.cfg.SerfAddress

	conf.EventCh = c.serfEventCh
	conf.SnapshotPath = filepath.Join(c.cfg.DataDir, "serf-snapshot")
	if err := os.MkdirAll(conf.SnapshotPath, 0755); err != nil {
		return fmt.Errorf("create serf snapshot dir: %w", err)
	}

	c.serf, err = serf.Create(conf)
	if err != nil {
		return fmt.Errorf("create serf: %w", err)
	}

	if c.cfg.SerfJoinAddress != "" {
		joinAddrs := strings.Split(c.cfg.SerfJoinAddress, ",")
		n, err := c.serf.Join(joinAddrs, true)
		if err != nil {
			logging.Named("registry").Warn("couldn't join serf cluster, starting own", "error", err)
		} else {
			logging.Named("registry").Info("joined serf cluster", "contacted", n)
		}
	}
	return nil
}

func (c *RaftClient) handleSerfEvents() {
	log := logging.Named("registry")
	for {
		select {
		case e := <-c.serfEventCh:
			switch e.EventType() {
			case serf.EventMemberJoin, serf.EventMemberLeave, serf.EventMemberReap, serf.EventMemberFailed:
				if me, ok := e.(serf.MemberEvent); ok {
					log.Debug("serf membership event", "type", e.EventType(), "members", len(me.Members))
				}
			}
		case <-c.shutdownCh:
			return
		}
	}
}
