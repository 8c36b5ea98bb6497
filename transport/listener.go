// File: transport/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"runtime"

	"github.com/momentics/hioload-sock/api"
	"go.uber.org/zap"
)

// Listener accepts incoming TCP connections.
//
// State machine: Empty -> Listening -> Closed.
type Listener struct {
	noCopy noCopy
	h      handle
}

func (l *Listener) finalize() { l.h.leaked() }

// Bind creates a listener on address:port. "0.0.0.0" and "*" select every
// local interface; port 0 lets the OS choose, see Addr.
func Bind(address string, port int) (*Listener, error) {
	p, err := engine.OpenListener(address, port)
	observe("listen", 0, err)
	if err != nil {
		return nil, err
	}
	l := &Listener{h: handle{p: p, kind: "listener"}}
	onOpen(l.h.kind)
	runtime.SetFinalizer(l, (*Listener).finalize)
	Logger().Debug("listening", zap.String("addr", api.PeerAddr{Address: address, Port: port}.String()))
	return l, nil
}

// Accept blocks until a client connects and returns the new Stream.
func (l *Listener) Accept() (*Stream, error) {
	if l == nil || l.h.empty() {
		return nil, invalid("accept")
	}
	p, err := engine.Accept(l.h.p)
	runtime.KeepAlive(l)
	observe("accept", 0, err)
	if err != nil {
		return nil, err
	}
	return newStream(p), nil
}

// Addr returns the bound local address, with the OS-chosen port if 0 was
// requested.
func (l *Listener) Addr() (api.PeerAddr, error) {
	if l == nil || l.h.empty() {
		return api.PeerAddr{}, invalid("getsockname")
	}
	a, err := engine.LocalAddr(l.h.p)
	runtime.KeepAlive(l)
	return a, err
}

// Move transfers the listening socket into a new Listener and leaves l empty.
func (l *Listener) Move() *Listener {
	if l == nil || l.h.empty() {
		return &Listener{h: handle{kind: "listener"}}
	}
	out := &Listener{h: handle{p: l.h.take(), kind: "listener"}}
	runtime.SetFinalizer(out, (*Listener).finalize)
	return out
}

// Close stops listening. Idempotent.
func (l *Listener) Close() error {
	if l == nil {
		return nil
	}
	runtime.SetFinalizer(l, nil)
	return l.h.release()
}

// State reports the lifecycle state.
func (l *Listener) State() api.State {
	if l == nil {
		return api.StateEmpty
	}
	return l.h.state(api.StateListening)
}
