// Package broker is the network front end: a minimal length-prefixed
// request/response protocol over TCP carrying Produce, Fetch, and
// CreateTopic operations into a logmanager.Manager. It is deliberately
// not Kafka-wire-compatible — implementing that wire format is out of
// scope for a Log Manager (spec.md §1) and would not exercise anything
// here that this simpler protocol doesn't already exercise. Grounded on
// the teacher's protocol/broker.go connection-handling idiom: read a
// 4-byte big-endian length prefix, then the frame, dispatch, respond.
package broker

import (
	"encoding/binary"
	"fmt"
)

// opCode identifies the requested operation. Distinct from Kafka's API
// keys on purpose.
type opCode byte

const (
	opProduce     opCode = 0
	opFetch       opCode = 1
	opCreateTopic opCode = 2
)

// errorCode mirrors the teacher's wire responses carrying a numeric
// error_code rather than a Go error: the client is on the other end of
// a socket, not a goroutine boundary.
type errorCode int16

const (
	errNone             errorCode = 0
	errInvalidPartition errorCode = 1
	errIO               errorCode = 2
)

var byteOrder = binary.BigEndian

// frameWriter accumulates a response frame, reserving the first 4
// bytes for the total length the way the teacher's Encoder does.
type frameWriter struct {
	buf []byte
}

func newFrameWriter() *frameWriter {
	return &frameWriter{buf: make([]byte, 4)}
}

func (w *frameWriter) putInt16(v int16) {
	var b [2]byte
	byteOrder.PutUint16(b[:], uint16(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *frameWriter) putInt32(v int32) {
	var b [4]byte
	byteOrder.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *frameWriter) putInt64(v int64) {
	var b [8]byte
	byteOrder.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *frameWriter) putString(s string) {
	w.putInt16(int16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *frameWriter) putBytes(b []byte) {
	w.putInt32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// bytes finalizes the frame, writing its total length (excluding the
// length prefix itself) into the first 4 bytes.
func (w *frameWriter) bytes() []byte {
	byteOrder.PutUint32(w.buf[:4], uint32(len(w.buf)-4))
	return w.buf
}

// frameReader parses a single request frame (length prefix already
// stripped by the caller).
type frameReader struct {
	buf    []byte
	offset int
}

func newFrameReader(buf []byte) *frameReader {
	return &frameReader{buf: buf}
}

func (r *frameReader) int32() (int32, error) {
	if r.offset+4 > len(r.buf) {
		return 0, fmt.Errorf("frame too short reading int32 at offset %d", r.offset)
	}
	v := int32(byteOrder.Uint32(r.buf[r.offset:]))
	r.offset += 4
	return v, nil
}

func (r *frameReader) int64() (int64, error) {
	if r.offset+8 > len(r.buf) {
		return 0, fmt.Errorf("frame too short reading int64 at offset %d", r.offset)
	}
	v := int64(byteOrder.Uint64(r.buf[r.offset:]))
	r.offset += 8
	return v, nil
}

func (r *frameReader) string() (string, error) {
	if r.offset+2 > len(r.buf) {
		return "", fmt.Errorf("frame too short reading string length at offset %d", r.offset)
	}
	n := int(byteOrder.Uint16(r.buf[r.offset:]))
	r.offset += 2
	if r.offset+n > len(r.buf) {
		return "", fmt.Errorf("frame too short reading string body at offset %d", r.offset)
	}
	s := string(r.buf[r.offset : r.offset+n])
	r.offset += n
	return s, nil
}

func (r *frameReader) bytes() ([]byte, error) {
	if r.offset+4 > len(r.buf) {
		return nil, fmt.Errorf("frame too short reading bytes length at offset %d", r.offset)
	}
	n := int(byteOrder.Uint32(r.buf[r.offset:]))
	r.offset += 4
	if r.offset+n > len(r.buf) {
		return nil, fmt.Errorf("frame too short reading bytes body at offset %d", r.offset)
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}
