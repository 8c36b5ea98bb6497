// File: internal/cli/udp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/server"
	"github.com/momentics/hioload-sock/transport"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) udpServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "udp-server",
		Short: "Echo datagrams back to their sender",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := transport.BindDatagram(a.cfg.Address, a.cfg.Port)
			if err != nil {
				return errors.Wrap(err, "bind")
			}
			defer d.Close()
			addr, err := d.LocalAddr()
			if err != nil {
				return errors.Wrap(err, "bind")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "UDP server listening on %s\n", addr)

			srv := a.packetServer()
			return a.runUntilSignal(cmd.Context(), func() error { return srv.Serve(d) }, srv.Shutdown)
		},
	}
	endpointFlags(cmd.Flags())
	shutdownFlag(cmd.Flags())
	cmd.Flags().Int("buffer-size", 1024, "receive buffer size")
	return cmd
}

func (a *app) udpClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "udp-client",
		Short: "Send --message from an unbound socket and print the reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.udpExchange(cmd.OutOrStdout(), api.PeerAddr{Address: a.cfg.Address, Port: a.cfg.Port})
		},
	}
	endpointFlags(cmd.Flags())
	cmd.Flags().Int("buffer-size", 1024, "receive buffer size")
	cmd.Flags().String("message", "Hello from client!", "message to send")
	return cmd
}

func (a *app) udpDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "udp-demo",
		Short: "Run the UDP echo server and one client exchange in-process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := transport.BindDatagram(a.cfg.Address, a.cfg.Port)
			if err != nil {
				return errors.Wrap(err, "bind")
			}
			defer d.Close()
			addr, err := d.LocalAddr()
			if err != nil {
				return errors.Wrap(err, "bind")
			}
			if addr.Address == "0.0.0.0" {
				addr.Address = "127.0.0.1"
			}

			srv := a.packetServer()
			var g errgroup.Group
			g.Go(func() error {
				if err := srv.Serve(d); !errors.Is(err, server.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				defer srv.Shutdown(context.Background())
				return a.udpExchange(cmd.OutOrStdout(), addr)
			})
			return g.Wait()
		},
	}
	endpointFlags(cmd.Flags())
	cmd.Flags().Int("buffer-size", 1024, "receive buffer size")
	cmd.Flags().String("message", "Hello from client!", "message to send")
	return cmd
}

func (a *app) packetServer() *server.PacketServer {
	return server.NewPacketServer(server.EchoPacket{Logger: a.log},
		server.WithConfig(server.ConfigFrom(a.cfg)),
		server.WithLogger(a.log))
}

// udpExchange sends the configured message to target and prints one reply.
func (a *app) udpExchange(out io.Writer, target api.PeerAddr) error {
	c, err := transport.OpenDatagram()
	if err != nil {
		return errors.Wrap(err, "socket")
	}
	defer c.Close()

	n, err := c.SendTo([]byte(a.cfg.Message), target.Address, target.Port)
	if err != nil {
		return errors.Wrap(err, "sendto")
	}
	fmt.Fprintf(out, "Sent %d bytes to %s\n", n, target)

	buf := make([]byte, a.cfg.BufferSize)
	n, from, err := c.RecvFrom(buf)
	if err != nil {
		return errors.Wrap(err, "recvfrom")
	}
	fmt.Fprintf(out, "Received %d bytes from %s -> %s\n", n, from, buf[:n])
	return nil
}
