// Package registry provides implementations of the external registry
// collaborator the log manager announces brokers and topics through
// (spec §6, §9). NoopClient is the default; RaftClient is a
// Raft+Serf-backed implementation for operators who enable clustering.
package registry

import "github.com/go-jafka/jafka/types"

// NoopClient satisfies types.RegistryClient with no observable side
// effects, used whenever registry integration is disabled. The log
// manager must function fully against this implementation (spec §9).
type NoopClient struct{}

func (NoopClient) Start() error                       { return nil }
func (NoopClient) RegisterBroker(_ types.Node) error   { return nil }
func (NoopClient) RegisterTopic(_ string) error        { return nil }
func (NoopClient) Close() error                        { return nil }

var _ types.RegistryClient = NoopClient{}
