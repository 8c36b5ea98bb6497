// File: transport/entity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ownership plumbing shared by Stream, Listener and DatagramSocket.

package transport

import (
	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/control"
	"go.uber.org/zap"
)

// BackendName reports the execution strategy compiled into this build.
func BackendName() string { return engine.Name() }

// noCopy lets go vet's copylocks check reject copies of an entity.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// handle is the owned pair plus lifecycle bookkeeping. A nil p means the
// entity is empty; closed distinguishes Closed from moved-from.
type handle struct {
	p      *pair
	closed bool
	kind   string
}

func (h *handle) empty() bool { return h == nil || h.p == nil }

// take moves the pair out of h, leaving it empty.
func (h *handle) take() *pair {
	p := h.p
	h.p = nil
	return p
}

// release closes the pair exactly once.
func (h *handle) release() error {
	if h.p == nil {
		h.closed = true
		return nil
	}
	err := engine.Close(h.take())
	h.closed = true
	control.HandleClosed(BackendName(), h.kind)
	control.ObserveOp(BackendName(), "close", 0, err)
	if err != nil {
		Logger().Warn("close failed", zap.String("kind", h.kind), zap.Error(err))
	}
	return err
}

func (h *handle) state(live api.State) api.State {
	switch {
	case h.p != nil:
		return live
	case h.closed:
		return api.StateClosed
	default:
		return api.StateEmpty
	}
}

// leaked is the finalizer safety net for entities dropped without Close.
func (h *handle) leaked() {
	if h.p == nil {
		return
	}
	Logger().Warn("releasing unreachable entity", zap.String("kind", h.kind))
	_ = h.release()
}

func invalid(op string) error {
	return api.NewError(op, api.ErrCodeInvalidHandle)
}

func observe(op string, n int, err error) {
	control.ObserveOp(BackendName(), op, n, err)
}

func onOpen(kind string) {
	control.HandleOpened(BackendName(), kind)
}
