package control_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsExposition(t *testing.T) {
	control.ObserveOp("test", "write", 4, nil)
	control.ObserveOp("test", "read", 0, api.NewError("read", api.ErrCodeInvalidHandle))
	control.HandleOpened("test", "stream")

	rec := httptest.NewRecorder()
	control.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `hioload_sock_ops_total{backend="test",code="ok",op="write"} 1`)
	assert.Contains(t, body, `hioload_sock_ops_total{backend="test",code="invalid handle",op="read"} 1`)
	assert.Contains(t, body, `hioload_sock_bytes_total{backend="test",op="write"} 4`)
	assert.Contains(t, body, `hioload_sock_open_handles{backend="test",kind="stream"} 1`)
	assert.False(t, strings.Contains(body, `hioload_sock_bytes_total{backend="test",op="read"}`))

	control.HandleClosed("test", "stream")
}

func TestNewLogger(t *testing.T) {
	l, lvl, err := control.NewLogger("warn")
	require.NoError(t, err)
	defer l.Sync()
	assert.Equal(t, zap.WarnLevel, lvl.Level())

	lvl.SetLevel(zap.DebugLevel)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, _, err = control.NewLogger("chatty")
	assert.Error(t, err)
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	dp.RegisterProbe("transport.backend", func() any { return "direct" })

	names := dp.Names()
	assert.Contains(t, names, "platform.cpus")
	assert.Contains(t, names, "transport.backend")

	state := dp.DumpState()
	assert.Equal(t, "direct", state["transport.backend"])
	assert.Positive(t, state["platform.cpus"])
}
