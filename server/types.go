package server

import (
	"context"
	"time"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/control"
	"github.com/momentics/hioload-sock/transport"
	"github.com/pkg/errors"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

// Handler serves one accepted stream. The server closes the stream when
// ServeStream returns; a returned error is logged.
type Handler interface {
	ServeStream(ctx context.Context, s *transport.Stream) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, s *transport.Stream) error

// ServeStream implements Handler.
func (f HandlerFunc) ServeStream(ctx context.Context, s *transport.Stream) error { return f(ctx, s) }

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// PacketHandler serves one received datagram. payload is only valid until
// ServePacket returns.
type PacketHandler interface {
	ServePacket(d *transport.DatagramSocket, payload []byte, peer api.PeerAddr) error
}

// PacketHandlerFunc adapts a function to PacketHandler.
type PacketHandlerFunc func(d *transport.DatagramSocket, payload []byte, peer api.PeerAddr) error

// ServePacket implements PacketHandler.
func (f PacketHandlerFunc) ServePacket(d *transport.DatagramSocket, payload []byte, peer api.PeerAddr) error {
	return f(d, payload, peer)
}

// Config holds server-side tuning.
type Config struct {
	BufferSize      int           // receive buffer per stream or datagram
	PoolLimit       int           // idle buffers retained by the pool
	ShutdownTimeout time.Duration // bounds Shutdown when its ctx has no deadline
	Backoff         control.BackoffConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BufferSize:      1024,
		PoolLimit:       64,
		ShutdownTimeout: 30 * time.Second,
		Backoff: control.BackoffConfig{
			Min:    10 * time.Millisecond,
			Max:    time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
}

// ConfigFrom derives server tuning from program configuration.
func ConfigFrom(c *control.Config) *Config {
	cfg := DefaultConfig()
	cfg.BufferSize = c.BufferSize
	cfg.ShutdownTimeout = c.ShutdownTimeout
	cfg.Backoff = c.Backoff
	return cfg
}

// bounded applies d to ctx unless ctx already carries a deadline or d is
// not positive.
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
