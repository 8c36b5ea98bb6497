// File: internal/cli/tcp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/hioload-sock/pool"
	"github.com/momentics/hioload-sock/server"
	"github.com/momentics/hioload-sock/transport"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) tcpServerCmd() *cobra.Command {
	var (
		echo  bool
		reply string
	)
	cmd := &cobra.Command{
		Use:   "tcp-server",
		Short: "Accept TCP clients, one goroutine each",
		Long: `Accept TCP clients on --address:--port. By default every client gets one
reply to its first message; with --echo everything is echoed until the
client closes. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := transport.Bind(a.cfg.Address, a.cfg.Port)
			if err != nil {
				return errors.Wrap(err, "bind")
			}
			defer l.Close()
			addr, err := l.Addr()
			if err != nil {
				return errors.Wrap(err, "bind")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server listening on %s\n", addr)

			var h server.Handler = server.Greet{Reply: reply, Logger: a.log}
			bp := pool.NewBytePool(a.cfg.BufferSize, 64)
			if echo {
				h = server.Echo{Pool: bp}
			}
			srv := server.New(h,
				server.WithConfig(server.ConfigFrom(a.cfg)),
				server.WithLogger(a.log),
				server.WithBufferPool(bp))
			return a.runUntilSignal(cmd.Context(), func() error { return srv.Serve(l) }, srv.Shutdown)
		},
	}
	endpointFlags(cmd.Flags())
	backoffFlags(cmd.Flags())
	shutdownFlag(cmd.Flags())
	cmd.Flags().Int("buffer-size", 1024, "receive buffer size")
	cmd.Flags().BoolVar(&echo, "echo", false, "echo every byte instead of replying once")
	cmd.Flags().StringVar(&reply, "reply", "Hello from server!", "reply sent to each client")
	return cmd
}

func (a *app) tcpClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tcp-client",
		Short: "Connect, send --message and print the reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := transport.Connect(a.cfg.Address, a.cfg.Port)
			if err != nil {
				return errors.Wrap(err, "connect")
			}
			defer s.Close()

			if _, err := s.WriteAll([]byte(a.cfg.Message)); err != nil {
				return errors.Wrap(err, "write")
			}
			buf := make([]byte, a.cfg.BufferSize)
			n, err := s.Read(buf)
			if err != nil {
				return errors.Wrap(err, "read")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Received: %s\n", buf[:n])
			return nil
		},
	}
	endpointFlags(cmd.Flags())
	cmd.Flags().Int("buffer-size", 1024, "receive buffer size")
	cmd.Flags().String("message", "Hello from client!", "message to send")
	return cmd
}

// runUntilSignal runs serve until it fails or the process is asked to stop,
// then shuts the server down. The server bounds the wait with its configured
// shutdown timeout.
func (a *app) runUntilSignal(parent context.Context, serve func() error, shutdown func(context.Context) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- serve() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	if err := shutdown(context.Background()); err != nil {
		a.log.Warn("shutdown incomplete", zap.Error(err))
	}
	if err := <-errc; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	return nil
}
