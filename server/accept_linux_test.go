//go:build linux

package server_test

import (
	"testing"
	"time"

	"github.com/momentics/hioload-sock/server"
	"github.com/momentics/hioload-sock/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sys/unix"
)

// exhaustDescriptors lowers RLIMIT_NOFILE so that exactly free descriptors
// remain available. The limit is restored by the returned func and at cleanup.
func exhaustDescriptors(t *testing.T, free int) func() {
	t.Helper()
	var orig unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &orig))

	held := make([]int, 0, free)
	for i := 0; i < free; i++ {
		fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
		require.NoError(t, err)
		held = append(held, fd)
	}
	// Open hands out the lowest free descriptor, so everything below the
	// last placeholder is in use.
	lim := orig
	lim.Cur = uint64(held[len(held)-1] + 1)
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &lim))
	for _, fd := range held {
		unix.Close(fd)
	}

	restored := false
	restore := func() {
		if !restored {
			restored = true
			require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &orig))
		}
	}
	t.Cleanup(restore)
	return restore
}

func TestServeContinuesAfterAcceptFailure(t *testing.T) {
	for _, withBackoff := range []bool{false, true} {
		name := "immediate retry"
		if withBackoff {
			name = "backoff"
		}
		t.Run(name, func(t *testing.T) {
			l, port := bind(t, "127.0.0.1")

			core, logs := observer.New(zap.WarnLevel)
			cfg := server.DefaultConfig()
			cfg.Backoff.Enabled = withBackoff
			cfg.Backoff.Min = time.Millisecond
			cfg.Backoff.Max = 5 * time.Millisecond
			srv := server.New(server.Echo{}, server.WithConfig(cfg), server.WithLogger(zap.New(core)))

			// The client needs its socket, plus a private ring on io_uring.
			free := 1
			if transport.BackendName() == "io_uring" {
				free = 2
			}
			restore := exhaustDescriptors(t, free)

			client, err := transport.Connect("127.0.0.1", port)
			if err != nil {
				restore()
				require.NoError(t, err)
			}
			defer client.Close()

			served := make(chan error, 1)
			go func() { served <- srv.Serve(l) }()

			assert.Eventually(t, func() bool {
				return logs.FilterMessage("accept failed").Len() >= 3
			}, 5*time.Second, time.Millisecond)
			select {
			case err := <-served:
				restore()
				t.Fatalf("Serve returned while descriptors were exhausted: %v", err)
			default:
			}
			restore()

			_, err = client.WriteAll([]byte("still listening"))
			require.NoError(t, err)
			require.NoError(t, client.CloseWrite())
			got := make([]byte, 0, 32)
			buf := make([]byte, 32)
			for {
				n, err := client.Read(buf)
				require.NoError(t, err)
				if n == 0 {
					break
				}
				got = append(got, buf[:n]...)
			}
			assert.Equal(t, "still listening", string(got))

			shutdown(t, srv.Shutdown)
			assert.ErrorIs(t, <-served, server.ErrServerClosed)
		})
	}
}
