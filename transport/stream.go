// File: transport/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"runtime"

	"github.com/momentics/hioload-sock/api"
	"go.uber.org/zap"
)

// Stream is a connected, bidirectional TCP byte stream.
//
// State machine: Empty -> Connected -> Closed. A moved-from Stream is Empty.
type Stream struct {
	noCopy noCopy
	h      handle
}

func newStream(p *pair) *Stream {
	s := &Stream{h: handle{p: p, kind: "stream"}}
	onOpen(s.h.kind)
	runtime.SetFinalizer(s, (*Stream).finalize)
	return s
}

func (s *Stream) finalize() { s.h.leaked() }

// Connect opens a stream to address:port and blocks until the handshake
// completes. A listener that is absent yields ErrCodeConnectionRefused.
func Connect(address string, port int) (*Stream, error) {
	p, err := engine.Connect(address, port)
	observe("connect", 0, err)
	if err != nil {
		return nil, err
	}
	Logger().Debug("stream connected", zap.String("peer", api.PeerAddr{Address: address, Port: port}.String()))
	return newStream(p), nil
}

// Read blocks until at least one byte is available and returns it. A zero
// count with a nil error means the peer shut down its write side. An empty
// buf is ErrCodeInvalidArgument.
func (s *Stream) Read(buf []byte) (int, error) {
	if s == nil || s.h.empty() {
		return 0, invalid("read")
	}
	n, err := engine.Read(s.h.p, buf)
	runtime.KeepAlive(s)
	observe("read", n, err)
	return n, err
}

// Write sends up to len(data) bytes and reports how many were accepted.
// Short writes are legal; see WriteAll.
func (s *Stream) Write(data []byte) (int, error) {
	if s == nil || s.h.empty() {
		return 0, invalid("write")
	}
	n, err := engine.Write(s.h.p, data)
	runtime.KeepAlive(s)
	observe("write", n, err)
	return n, err
}

// WriteAll writes data completely or returns the first error together with
// the number of bytes already sent.
func (s *Stream) WriteAll(data []byte) (int, error) {
	total := 0
	for total < len(data) {
		n, err := s.Write(data[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, api.NewError("write", api.ErrCodeIO)
		}
	}
	return total, nil
}

// CloseWrite shuts down the sending side; the peer reads end-of-stream while
// this side can keep reading.
func (s *Stream) CloseWrite() error {
	if s == nil || s.h.empty() {
		return invalid("shutdown")
	}
	err := engine.ShutdownWrite(s.h.p)
	runtime.KeepAlive(s)
	observe("shutdown", 0, err)
	return err
}

// LocalAddr returns the local endpoint of the connection.
func (s *Stream) LocalAddr() (api.PeerAddr, error) {
	if s == nil || s.h.empty() {
		return api.PeerAddr{}, invalid("getsockname")
	}
	a, err := engine.LocalAddr(s.h.p)
	runtime.KeepAlive(s)
	return a, err
}

// Move transfers the connection into a new Stream and leaves s empty.
func (s *Stream) Move() *Stream {
	if s == nil || s.h.empty() {
		return &Stream{h: handle{kind: "stream"}}
	}
	out := &Stream{h: handle{p: s.h.take(), kind: "stream"}}
	runtime.SetFinalizer(out, (*Stream).finalize)
	return out
}

// Close releases the connection. It is idempotent and a no-op on an empty
// Stream.
func (s *Stream) Close() error {
	if s == nil {
		return nil
	}
	runtime.SetFinalizer(s, nil)
	return s.h.release()
}

// State reports the lifecycle state.
func (s *Stream) State() api.State {
	if s == nil {
		return api.StateEmpty
	}
	return s.h.state(api.StateConnected)
}
