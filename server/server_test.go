// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server lifecycle: accept loop, handlers, middleware and shutdown wake-up.

package server_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/control"
	"github.com/momentics/hioload-sock/server"
	"github.com/momentics/hioload-sock/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

func bind(t *testing.T, address string) (*transport.Listener, int) {
	t.Helper()
	l, err := transport.Bind(address, 0)
	if errors.Is(err, api.ErrPlatformUnsupported) {
		t.Skipf("%s backend unavailable", transport.BackendName())
	}
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	a, err := l.Addr()
	require.NoError(t, err)
	return l, a.Port
}

type streamReader struct{ s *transport.Stream }

func (r streamReader) Read(p []byte) (int, error) {
	n, err := r.s.Read(p)
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}

func roundTrip(t *testing.T, port int, msg string) string {
	t.Helper()
	c, err := transport.Connect("127.0.0.1", port)
	require.NoError(t, err)
	defer c.Close()
	_, err = c.WriteAll([]byte(msg))
	require.NoError(t, err)
	require.NoError(t, c.CloseWrite())
	got, err := io.ReadAll(streamReader{c})
	require.NoError(t, err)
	return string(got)
}

func shutdown(t *testing.T, stop func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
}

func TestServeEchoAndShutdown(t *testing.T) {
	l, port := bind(t, "127.0.0.1")
	srv := server.New(server.Echo{}, server.WithLogger(zaptest.NewLogger(t)))

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })

	assert.Equal(t, "ping", roundTrip(t, port, "ping"))
	assert.Equal(t, "second client", roundTrip(t, port, "second client"))

	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
	assert.Zero(t, srv.Active())
	assert.Equal(t, api.StateListening, l.State(), "listener stays with the caller")

	assert.ErrorIs(t, srv.Serve(l), server.ErrServerClosed)
}

func TestShutdownWakesWildcardListener(t *testing.T) {
	l, _ := bind(t, "0.0.0.0")
	srv := server.New(server.Echo{})

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })

	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
}

func TestShutdownBeforeServe(t *testing.T) {
	l, _ := bind(t, "127.0.0.1")
	srv := server.New(server.Echo{})
	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, srv.Serve(l), server.ErrServerClosed)
}

func TestShutdownHonoursContext(t *testing.T) {
	l, port := bind(t, "127.0.0.1")
	release := make(chan struct{})
	entered := make(chan struct{})
	srv := server.New(server.HandlerFunc(func(ctx context.Context, s *transport.Stream) error {
		close(entered)
		<-release
		return nil
	}))

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })

	c, err := transport.Connect("127.0.0.1", port)
	require.NoError(t, err)
	defer c.Close()
	<-entered
	assert.Equal(t, 1, srv.Active())
	sessions := srv.Sessions()
	require.Len(t, sessions, 1)
	assert.NotEmpty(t, sessions[0].ID)
	assert.Equal(t, port, sessions[0].Listener.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
	assert.Empty(t, srv.Sessions())
}

func TestHandlerContextCancelledOnShutdown(t *testing.T) {
	l, port := bind(t, "127.0.0.1")
	entered := make(chan struct{})
	srv := server.New(server.HandlerFunc(func(ctx context.Context, s *transport.Stream) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}))

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })
	c, err := transport.Connect("127.0.0.1", port)
	require.NoError(t, err)
	defer c.Close()
	<-entered

	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
}

func TestMiddlewareOrder(t *testing.T) {
	l, port := bind(t, "127.0.0.1")
	var order []string
	done := make(chan struct{})
	tag := func(name string) server.Middleware {
		return func(next server.Handler) server.Handler {
			return server.HandlerFunc(func(ctx context.Context, s *transport.Stream) error {
				order = append(order, name)
				return next.ServeStream(ctx, s)
			})
		}
	}
	srv := server.New(server.HandlerFunc(func(ctx context.Context, s *transport.Stream) error {
		order = append(order, "handler")
		close(done)
		return nil
	}), server.WithMiddleware(tag("outer"), tag("inner")))

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })
	c, err := transport.Connect("127.0.0.1", port)
	require.NoError(t, err)
	defer c.Close()
	<-done

	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	l, port := bind(t, "127.0.0.1")
	var calls atomic.Int32
	srv := server.New(server.HandlerFunc(func(ctx context.Context, s *transport.Stream) error {
		if calls.Add(1) == 1 {
			// Drain first so the close is orderly rather than a reset.
			buf := make([]byte, 64)
			for {
				n, err := s.Read(buf)
				if err != nil || n == 0 {
					break
				}
			}
			panic("boom")
		}
		return server.Echo{}.ServeStream(ctx, s)
	}), server.WithLogger(zaptest.NewLogger(t)))

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })

	// The panicking handler's stream is closed: the client reads end-of-stream.
	assert.Equal(t, "", roundTrip(t, port, "first"))
	assert.Equal(t, "second", roundTrip(t, port, "second"))

	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
}

func TestGreetHandler(t *testing.T) {
	l, port := bind(t, "127.0.0.1")
	srv := server.New(server.Greet{Reply: "Hello from server!", Logger: zaptest.NewLogger(t)})

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })
	assert.Equal(t, "Hello from server!", roundTrip(t, port, "Hello from client!"))

	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
}

func TestServeClosedListener(t *testing.T) {
	l, _ := bind(t, "127.0.0.1")
	require.NoError(t, l.Close())
	err := server.New(server.Echo{}).Serve(l)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
}

func TestShutdownTimeoutBoundsBackgroundContext(t *testing.T) {
	l, port := bind(t, "127.0.0.1")
	release := make(chan struct{})
	entered := make(chan struct{})
	cfg := server.DefaultConfig()
	cfg.ShutdownTimeout = 50 * time.Millisecond
	srv := server.New(server.HandlerFunc(func(ctx context.Context, s *transport.Stream) error {
		close(entered)
		<-release
		return nil
	}), server.WithConfig(cfg))

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })

	c, err := transport.Connect("127.0.0.1", port)
	require.NoError(t, err)
	defer c.Close()
	<-entered

	start := time.Now()
	assert.ErrorIs(t, srv.Shutdown(context.Background()), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	close(release)
	shutdown(t, srv.Shutdown)
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
}

func TestConfigFromProgramConfig(t *testing.T) {
	pc, err := control.Load(control.NewViper(), "")
	require.NoError(t, err)
	pc.BufferSize = 4096
	pc.ShutdownTimeout = 3 * time.Second
	pc.Backoff.Enabled = true

	cfg := server.ConfigFrom(pc)
	assert.Equal(t, 4096, cfg.BufferSize)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.Backoff.Enabled)
}
