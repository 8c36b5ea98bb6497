package cli_test

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/cli"
	"github.com/momentics/hioload-sock/server"
	"github.com/momentics/hioload-sock/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := cli.NewRootCommand()
	cmd.SetArgs(append(args, "--log-level", "error"))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), err
}

func skipUnsupported(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, api.ErrPlatformUnsupported) {
		t.Skipf("%s backend unavailable", transport.BackendName())
	}
}

func TestBackendCommand(t *testing.T) {
	out, err := run(t, "backend")
	require.NoError(t, err)
	assert.Contains(t, out, "transport.backend: "+transport.BackendName())
	assert.Contains(t, out, "cpus: ")
}

func TestUDPDemo(t *testing.T) {
	out, err := run(t, "udp-demo", "--port", "0", "--message", "demo payload")
	skipUnsupported(t, err)
	require.NoError(t, err)
	assert.Contains(t, out, "Sent 12 bytes")
	assert.Contains(t, out, "-> demo payload")
}

func TestTCPClientAgainstServer(t *testing.T) {
	l, err := transport.Bind("127.0.0.1", 0)
	skipUnsupported(t, err)
	require.NoError(t, err)
	defer l.Close()
	addr, err := l.Addr()
	require.NoError(t, err)

	srv := server.New(server.Greet{Reply: "Hello from server!"}, server.WithLogger(zaptest.NewLogger(t)))
	var g errgroup.Group
	g.Go(func() error { return srv.Serve(l) })

	out, err := run(t, "tcp-client", "--port", strconv.Itoa(addr.Port), "--message", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Received: Hello from server!\n", out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.ErrorIs(t, g.Wait(), server.ErrServerClosed)
}

func TestTCPClientRefused(t *testing.T) {
	l, err := transport.Bind("127.0.0.1", 0)
	skipUnsupported(t, err)
	require.NoError(t, err)
	addr, err := l.Addr()
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = run(t, "tcp-client", "--port", strconv.Itoa(addr.Port))
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConnectionRefused)
}

func TestInvalidPortRejected(t *testing.T) {
	_, err := run(t, "tcp-client", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Port")
}

func TestInvalidAddressRejected(t *testing.T) {
	_, err := run(t, "udp-client", "--address", "not.an.ip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Address")
}

func TestUnknownCommand(t *testing.T) {
	_, err := run(t, "websocket")
	assert.Error(t, err)
}
