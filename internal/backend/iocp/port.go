//go:build windows

// File: internal/backend/iocp/port.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion port owned by one handle pair, plus the reaper goroutine that
// drains it and hands each completion to the operation waiting for it.

package iocp

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"
)

// stopKey marks the wake-up packet posted by stop.
const stopKey = ^uintptr(0)

type result struct {
	qty uint32
	err error
}

// operation is the overlapped record of one outstanding request. The
// Overlapped header must stay the first field: the reaper recovers the
// operation from the pointer the port returns.
type operation struct {
	o     windows.Overlapped
	token uint64
	done  chan result
}

type port struct {
	h windows.Handle

	mu      sync.Mutex
	pending map[uint64]*operation
	tokens  atomic.Uint64

	stopping atomic.Bool
	exited   chan struct{}
}

// newPort creates a completion port, associates sock with it and starts the
// reaper.
func newPort(sock windows.Handle) (*port, error) {
	h, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 1)
	if err != nil {
		return nil, err
	}
	if _, err := windows.CreateIoCompletionPort(sock, h, 0, 0); err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	p := &port{
		h:       h,
		pending: make(map[uint64]*operation),
		exited:  make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

// begin registers a new operation under a fresh token.
func (p *port) begin() *operation {
	o := &operation{
		token: p.tokens.Add(1),
		done:  make(chan result, 1),
	}
	p.mu.Lock()
	p.pending[o.token] = o
	p.mu.Unlock()
	return o
}

// forget drops an operation that failed to start.
func (p *port) forget(o *operation) {
	p.mu.Lock()
	delete(p.pending, o.token)
	p.mu.Unlock()
}

// outstanding reports how many operations await a completion.
func (p *port) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *port) reap() {
	defer close(p.exited)
	for {
		var (
			qty uint32
			key uintptr
			ov  *windows.Overlapped
		)
		err := windows.GetQueuedCompletionStatus(p.h, &qty, &key, &ov, windows.INFINITE)
		if ov == nil {
			if err != nil || (key == stopKey && p.stopping.Load()) {
				return
			}
			continue
		}
		op := (*operation)(unsafe.Pointer(ov))
		p.mu.Lock()
		o, ok := p.pending[op.token]
		if ok && o == op {
			delete(p.pending, op.token)
		}
		p.mu.Unlock()
		if !ok || o != op {
			// Unknown token: nobody waits for this completion.
			continue
		}
		o.done <- result{qty: qty, err: err}
	}
}

// stop wakes the reaper, waits for it to exit and closes the port. Safe to
// call more than once.
func (p *port) stop() error {
	if !p.stopping.CompareAndSwap(false, true) {
		return nil
	}
	if err := windows.PostQueuedCompletionStatus(p.h, 0, stopKey, nil); err != nil {
		// Closing the port also unblocks the reaper.
		cerr := windows.CloseHandle(p.h)
		<-p.exited
		return cerr
	}
	<-p.exited
	return windows.CloseHandle(p.h)
}
