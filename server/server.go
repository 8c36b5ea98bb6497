// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stream server: accept loop with one goroutine per connection.

package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/session"
	"github.com/momentics/hioload-sock/transport"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Server accepts streams from listeners and hands each to its Handler on a
// dedicated goroutine.
type Server struct {
	handler Handler
	opts    *options

	ctx    context.Context
	cancel context.CancelFunc

	inShutdown atomic.Bool
	mu         sync.Mutex
	wake       map[*transport.Listener]api.PeerAddr
	loops      sync.WaitGroup
	conns      sync.WaitGroup
	active     atomic.Int64
	sessions   *session.Store
}

// SessionInfo describes one stream being handled.
type SessionInfo struct {
	ID       string
	Listener api.PeerAddr
	Started  time.Time
}

// New builds a Server for handler.
func New(handler Handler, opts ...Option) *Server {
	o := buildOptions(opts)
	h := handler
	for i := len(o.middleware) - 1; i >= 0; i-- {
		h = o.middleware[i](h)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:  h,
		opts:     o,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(map[*transport.Listener]api.PeerAddr),
		sessions: session.NewStore(0),
	}
}

// Active reports how many handlers are running.
func (s *Server) Active() int { return int(s.active.Load()) }

// Sessions lists the streams currently being handled.
func (s *Server) Sessions() []SessionInfo {
	var out []SessionInfo
	s.sessions.Range(func(ss *session.Session) {
		out = append(out, SessionInfo{ID: ss.ID(), Listener: ss.Local(), Started: ss.Started()})
	})
	return out
}

// Serve accepts streams from l until Shutdown. The listener stays owned by
// the caller. A failed accept is logged and retried, with a pause when
// backoff is enabled; a listener that became invalid ends the loop.
func (s *Server) Serve(l *transport.Listener) error {
	addr, err := l.Addr()
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
	s.wake[l] = addr
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.wake, l)
		s.mu.Unlock()
		s.loops.Done()
	}()

	log := s.opts.logger.With(zap.Stringer("listener", addr))
	log.Info("serving", zap.String("backend", transport.BackendName()))

	var b *backoff.Backoff
	if bc := s.opts.cfg.Backoff; bc.Enabled {
		b = &backoff.Backoff{Min: bc.Min, Max: bc.Max, Factor: bc.Factor, Jitter: bc.Jitter}
	}

	for {
		st, err := l.Accept()
		if s.inShutdown.Load() {
			if err == nil {
				st.Close()
			}
			return ErrServerClosed
		}
		if err != nil {
			if errors.Is(err, api.ErrInvalidHandle) {
				return errors.Wrap(err, "accept")
			}
			log.Warn("accept failed", zap.Error(err))
			if b != nil {
				select {
				case <-time.After(b.Duration()):
				case <-s.ctx.Done():
				}
			}
			continue
		}
		if b != nil {
			b.Reset()
		}
		s.conns.Add(1)
		s.active.Add(1)
		go s.serveStream(st, addr, log)
	}
}

func (s *Server) serveStream(st *transport.Stream, local api.PeerAddr, log *zap.Logger) {
	sess := s.sessions.Open(s.ctx, local)
	log = log.With(zap.String("conn", sess.ID()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic", zap.Any("panic", r))
		}
		if err := st.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
		s.sessions.Close(sess.ID())
		s.active.Add(-1)
		s.conns.Done()
	}()

	log.Debug("stream accepted")
	if err := s.handler.ServeStream(sess.Context(), st); err != nil {
		log.Warn("handler failed", zap.Error(err))
		return
	}
	log.Debug("stream done")
}

// Shutdown stops every Serve loop and waits for running handlers until ctx
// expires. A ctx without a deadline is bounded by Config.ShutdownTimeout.
// Blocked accepts are woken by a connection to the listener's own
// address, so the listener is never closed under a pending call.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := bounded(ctx, s.opts.cfg.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	first := s.inShutdown.CompareAndSwap(false, true)
	targets := make([]api.PeerAddr, 0, len(s.wake))
	for _, a := range s.wake {
		targets = append(targets, a)
	}
	s.mu.Unlock()
	if first {
		s.cancel()
	}

	for _, a := range targets {
		st, err := transport.Connect(a.Address, a.Port)
		if err != nil {
			s.opts.logger.Warn("wake failed", zap.Stringer("listener", a), zap.Error(err))
			continue
		}
		st.Close()
	}

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "shutdown")
	}
}
