// File: internal/cli/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/momentics/hioload-sock/control"
	"github.com/momentics/hioload-sock/transport"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *control.Config
	log     *zap.Logger
	level   zap.AtomicLevel
	metrics *http.Server
}

// flag name -> config key, for every flag that feeds control.Config.
var configFlags = map[string]string{
	"address":          "address",
	"port":             "port",
	"buffer-size":      "buffer_size",
	"message":          "message",
	"log-level":        "log_level",
	"metrics-addr":     "metrics_addr",
	"shutdown-timeout": "shutdown_timeout",
	"backoff":          "backoff.enabled",
	"backoff-min":      "backoff.min",
	"backoff-max":      "backoff.max",
	"backoff-factor":   "backoff.factor",
	"backoff-jitter":   "backoff.jitter",
}

// NewRootCommand builds the hioload-sock command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: control.NewViper()}
	root := &cobra.Command{
		Use:   "hioload-sock",
		Short: "Blocking TCP/UDP transport demos over direct, io_uring and IOCP backends",
		Long: `hioload-sock runs small client and server programs on top of the transport
layer. Settings come from flags, HIOLOAD_SOCK_* environment variables or a
config file (YAML, TOML or JSON).`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this host:port")

	root.AddCommand(
		a.tcpServerCmd(),
		a.tcpClientCmd(),
		a.udpServerCmd(),
		a.udpClientCmd(),
		a.udpDemoCmd(),
		a.backendCmd(),
	)
	return root
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

func endpointFlags(fs *pflag.FlagSet) {
	fs.String("address", "127.0.0.1", "IPv4 address (0.0.0.0 or * for any)")
	fs.Int("port", 8080, "port")
}

func shutdownFlag(fs *pflag.FlagSet) {
	fs.Duration("shutdown-timeout", 10*time.Second, "wait this long for handlers on exit")
}

func backoffFlags(fs *pflag.FlagSet) {
	fs.Bool("backoff", false, "pause between failed accepts")
	fs.Duration("backoff-min", 10*time.Millisecond, "first accept backoff")
	fs.Duration("backoff-max", time.Second, "accept backoff ceiling")
	fs.Float64("backoff-factor", 2, "accept backoff multiplier")
	fs.Bool("backoff-jitter", true, "randomize accept backoff")
}

// setup binds the running command's flags, loads the config and wires the
// logger and metrics endpoint.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	for name, key := range configFlags {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return errors.Wrapf(err, "bind flag %s", name)
			}
		}
	}
	cfg, err := control.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log, a.level, err = control.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	transport.SetLogger(a.log)

	if a.cfgFile != "" {
		control.RegisterReloadHook(func(c *control.Config) {
			if err := a.level.UnmarshalText([]byte(c.LogLevel)); err == nil {
				a.log.Info("log level reloaded", zap.String("level", c.LogLevel))
			}
		})
		control.WatchConfig(a.v, func(err error) {
			a.log.Warn("config reload rejected", zap.Error(err))
		})
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", control.MetricsHandler())
		a.metrics = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
		a.log.Info("metrics endpoint", zap.String("addr", cfg.MetricsAddr))
	}
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}
