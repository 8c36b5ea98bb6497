package control_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-sock/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := control.Load(control.NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Address)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1024, cfg.BufferSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Backoff.Min)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Backoff.Enabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HIOLOAD_SOCK_PORT", "9001")
	t.Setenv("HIOLOAD_SOCK_ADDRESS", "*")
	t.Setenv("HIOLOAD_SOCK_BACKOFF_MAX", "2s")

	cfg, err := control.Load(control.NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, "*", cfg.Address)
	assert.Equal(t, 2*time.Second, cfg.Backoff.Max)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"address: 0.0.0.0\nport: 7000\nlog_level: debug\nbackoff:\n  enabled: true\n  min: 5ms\n  max: 50ms\n"), 0o600))

	cfg, err := control.Load(control.NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Address)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Backoff.Enabled)
	assert.Equal(t, 50*time.Millisecond, cfg.Backoff.Max)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := control.Load(control.NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidationRejects(t *testing.T) {
	cases := map[string]func(*control.Config){
		"hostname address": func(c *control.Config) { c.Address = "localhost" },
		"ipv6 address":     func(c *control.Config) { c.Address = "::1" },
		"port too large":   func(c *control.Config) { c.Port = 70000 },
		"zero buffer":      func(c *control.Config) { c.BufferSize = 0 },
		"log level":        func(c *control.Config) { c.LogLevel = "loud" },
		"backoff bounds":   func(c *control.Config) { c.Backoff.Max = c.Backoff.Min / 2 },
		"backoff factor":   func(c *control.Config) { c.Backoff.Factor = 0.5 },
		"metrics address":  func(c *control.Config) { c.MetricsAddr = "no-port" },
		"shutdown timeout": func(c *control.Config) { c.ShutdownTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := control.Load(control.NewViper(), "")
			require.NoError(t, err)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWatchConfigFiresReloadHooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sock.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nlog_level: info\n"), 0o600))

	v := control.NewViper()
	cfg, err := control.Load(v, path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)

	reloaded := make(chan *control.Config, 16)
	control.RegisterReloadHook(func(c *control.Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	rejected := make(chan error, 16)
	control.WatchConfig(v, func(err error) {
		select {
		case rejected <- err:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("port: 7001\nlog_level: debug\n"), 0o600))
	require.Eventually(t, func() bool {
		select {
		case c := <-reloaded:
			return c.Port == 7001 && c.LogLevel == "debug"
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("port: 70000\n"), 0o600))
	select {
	case err := <-rejected:
		assert.Contains(t, err.Error(), "Port")
	case <-time.After(5 * time.Second):
		t.Fatal("invalid edit was not rejected")
	}
}
