package broker

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/go-jafka/jafka/logging"
	"github.com/go-jafka/jafka/logmanager"
	"github.com/go-jafka/jafka/storage"
	"github.com/go-jafka/jafka/types"
)

const (
	errNotFound errorCode = 3
)

// Server is the broker's network front end: it owns a listener and
// dispatches each framed request to the logmanager.Manager it was
// built with. Grounded on the teacher's protocol/broker.go
// Broker.Startup/HandleConnection.
type Server struct {
	manager *logmanager.Manager

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds a Server over an already-loaded Manager. The
// manager's LogFactory must produce *storage.Log values: the broker
// reaches past the types.Log management contract to call Append/Read,
// operations logmanager itself never needs (spec.md §1).
func NewServer(manager *logmanager.Manager) *Server {
	return &Server{manager: manager}
}

// ListenAndServe binds addr and accepts connections until Close is
// called, handling each on its own goroutine.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log := logging.Named("broker")
	log.Info("listening", "addr", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Info("listener closed", "error", err)
			return nil
		}
		go s.handleConnection(conn)
	}
}

// Close stops accepting new connections. In-flight connections are
// left to observe the resulting I/O error and exit on their own.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()
	log := logging.Named("broker")
	log.Debug("connection established", "remote", conn.RemoteAddr(), "conn_id", connID)

	for {
		lengthBuf := make([]byte, 4)
		if _, err := io.ReadFull(conn, lengthBuf); err != nil {
			log.Debug("connection closed reading length prefix", "conn_id", connID, "error", err)
			return
		}
		length := binary.BigEndian.Uint32(lengthBuf)
		payload := make([]byte, length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			log.Warn("connection closed reading frame body", "conn_id", connID, "error", err)
			return
		}
		if len(payload) == 0 {
			log.Warn("empty frame, closing connection", "conn_id", connID)
			return
		}

		response := s.dispatch(opCode(payload[0]), payload[1:])
		if _, err := conn.Write(response); err != nil {
			log.Warn("error writing response", "conn_id", connID, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(op opCode, body []byte) []byte {
	switch op {
	case opProduce:
		return s.handleProduce(body)
	case opFetch:
		return s.handleFetch(body)
	case opCreateTopic:
		return s.handleCreateTopic(body)
	default:
		w := newFrameWriter()
		w.putInt16(int16(errIO))
		return w.bytes()
	}
}

func (s *Server) handleProduce(body []byte) []byte {
	r := newFrameReader(body)
	topic, err := r.string()
	if err != nil {
		return frameWithError(errIO)
	}
	partition, err := r.int32()
	if err != nil {
		return frameWithError(errIO)
	}
	record, err := r.bytes()
	if err != nil {
		return frameWithError(errIO)
	}

	log, err := s.manager.GetOrCreateLog(context.Background(), topic, types.PartitionIndex(partition))
	if err != nil {
		if _, ok := err.(*types.InvalidPartitionError); ok {
			return frameWithError(errInvalidPartition)
		}
		return frameWithError(errIO)
	}

	sl, ok := log.(*storage.Log)
	if !ok {
		return frameWithError(errIO)
	}
	offset, err := sl.Append(record)
	if err != nil {
		logging.Named("broker").Error("append failed", "topic", topic, "partition", partition, "error", err)
		return frameWithError(errIO)
	}

	w := newFrameWriter()
	w.putInt16(int16(errNone))
	w.putInt64(offset)
	return w.bytes()
}

func (s *Server) handleFetch(body []byte) []byte {
	r := newFrameReader(body)
	topic, err := r.string()
	if err != nil {
		return frameWithError(errIO)
	}
	partition, err := r.int32()
	if err != nil {
		return frameWithError(errIO)
	}
	offset, err := r.int64()
	if err != nil {
		return frameWithError(errIO)
	}

	log, err := s.manager.GetLog(context.Background(), topic, types.PartitionIndex(partition))
	if err != nil {
		if _, ok := err.(*types.InvalidPartitionError); ok {
			return frameWithError(errInvalidPartition)
		}
		return frameWithError(errIO)
	}
	if log == nil {
		return frameWithError(errNotFound)
	}

	sl, ok := log.(*storage.Log)
	if !ok {
		return frameWithError(errIO)
	}
	record, err := sl.Read(offset)
	if err != nil {
		return frameWithError(errNotFound)
	}

	w := newFrameWriter()
	w.putInt16(int16(errNone))
	w.putBytes(record)
	return w.bytes()
}

// handleCreateTopic materializes partitions for topic up to
// numPartitions, but never more than the broker's own configuration
// allows that topic (spec.md §6 topicPartitionsMap/numPartitions are
// static broker configuration, not a client-supplied value). Creation
// stops at the first partition beyond that range; the response carries
// errNone and the number of partitions actually created, or
// errInvalidPartition with a count of 0 when none could be created.
func (s *Server) handleCreateTopic(body []byte) []byte {
	r := newFrameReader(body)
	topic, err := r.string()
	if err != nil {
		return frameWithError(errIO)
	}
	numPartitions, err := r.int32()
	if err != nil {
		return frameWithError(errIO)
	}

	ctx := context.Background()
	var created int32
	for p := int32(0); p < numPartitions; p++ {
		_, err := s.manager.GetOrCreateLog(ctx, topic, types.PartitionIndex(p))
		if err != nil {
			if _, ok := err.(*types.InvalidPartitionError); ok {
				break
			}
			logging.Named("broker").Error("create topic partition failed", "topic", topic, "partition", p, "error", err)
			return frameWithError(errIO)
		}
		created++
	}

	w := newFrameWriter()
	if created == 0 {
		w.putInt16(int16(errInvalidPartition))
	} else {
		w.putInt16(int16(errNone))
	}
	w.putInt32(created)
	return w.bytes()
}

func frameWithError(code errorCode) []byte {
	w := newFrameWriter()
	w.putInt16(int16(code))
	return w.bytes()
}
