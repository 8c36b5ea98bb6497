// File: server/packet.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Datagram server: a single receive loop over pooled buffers.

package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/transport"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PacketServer receives datagrams and passes each to its PacketHandler on
// the receiving goroutine.
type PacketServer struct {
	handler PacketHandler
	opts    *options

	inShutdown atomic.Bool
	mu         sync.Mutex
	wake       map[*transport.DatagramSocket]api.PeerAddr
	loops      sync.WaitGroup
}

// NewPacketServer builds a PacketServer for handler. Middleware options do
// not apply to datagrams.
func NewPacketServer(handler PacketHandler, opts ...Option) *PacketServer {
	return &PacketServer{
		handler: handler,
		opts:    buildOptions(opts),
		wake:    make(map[*transport.DatagramSocket]api.PeerAddr),
	}
}

// Serve receives on d until Shutdown or a receive error, which ends the loop
// and is returned. d stays owned by the caller. Handler errors are logged.
func (s *PacketServer) Serve(d *transport.DatagramSocket) error {
	addr, err := d.LocalAddr()
	if err != nil {
		return errors.Wrap(err, "serve")
	}
	if addr.Address == "0.0.0.0" {
		addr.Address = "127.0.0.1"
	}

	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.loops.Add(1)
	s.wake[d] = addr
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.wake, d)
		s.mu.Unlock()
		s.loops.Done()
	}()

	log := s.opts.logger.With(zap.Stringer("socket", addr))
	log.Info("serving datagrams", zap.String("backend", transport.BackendName()))

	for {
		buf := s.opts.pool.GetBuffer()
		n, peer, err := d.RecvFrom(buf)
		if s.inShutdown.Load() {
			s.opts.pool.PutBuffer(buf)
			return ErrServerClosed
		}
		if err != nil {
			s.opts.pool.PutBuffer(buf)
			log.Error("receive failed", zap.Error(err))
			return errors.Wrap(err, "recvfrom")
		}
		if err := s.handler.ServePacket(d, buf[:n], peer); err != nil {
			log.Warn("handler failed", zap.Stringer("peer", peer), zap.Error(err))
		}
		s.opts.pool.PutBuffer(buf)
	}
}

// Shutdown stops every Serve loop by sending each socket an empty datagram
// and waits for the loops to exit until ctx expires. A ctx without a
// deadline is bounded by Config.ShutdownTimeout.
func (s *PacketServer) Shutdown(ctx context.Context) error {
	ctx, cancel := bounded(ctx, s.opts.cfg.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	s.inShutdown.Store(true)
	targets := make([]api.PeerAddr, 0, len(s.wake))
	for _, a := range s.wake {
		targets = append(targets, a)
	}
	s.mu.Unlock()

	if len(targets) > 0 {
		waker, err := transport.OpenDatagram()
		if err != nil {
			return errors.Wrap(err, "shutdown")
		}
		defer waker.Close()
		for _, a := range targets {
			if _, err := waker.SendTo(nil, a.Address, a.Port); err != nil {
				s.opts.logger.Warn("wake failed", zap.Stringer("socket", a), zap.Error(err))
			}
		}
	}

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "shutdown")
	}
}
