// File: server/handlers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ready-made handlers used by the example programs.

package server

import (
	"context"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/pool"
	"github.com/momentics/hioload-sock/transport"
	"go.uber.org/zap"
)

// Echo copies every received byte back until the peer shuts down its write
// side.
type Echo struct {
	Pool *pool.BytePool
}

// ServeStream implements Handler.
func (e Echo) ServeStream(_ context.Context, s *transport.Stream) error {
	buf := e.buffer()
	if e.Pool != nil {
		defer e.Pool.PutBuffer(buf)
	}
	for {
		n, err := s.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := s.WriteAll(buf[:n]); err != nil {
			return err
		}
	}
}

func (e Echo) buffer() []byte {
	if e.Pool != nil {
		return e.Pool.GetBuffer()
	}
	return make([]byte, 1024)
}

// Greet reads one message, logs it and answers with Reply.
type Greet struct {
	Reply  string
	Logger *zap.Logger
}

// ServeStream implements Handler.
func (g Greet) ServeStream(_ context.Context, s *transport.Stream) error {
	buf := make([]byte, 1024)
	n, err := s.Read(buf)
	if err != nil {
		return err
	}
	if g.Logger != nil {
		g.Logger.Info("received", zap.ByteString("message", buf[:n]))
	}
	_, err = s.WriteAll([]byte(g.Reply))
	return err
}

// EchoPacket sends every datagram back to its sender.
type EchoPacket struct {
	Logger *zap.Logger
}

// ServePacket implements PacketHandler.
func (e EchoPacket) ServePacket(d *transport.DatagramSocket, payload []byte, peer api.PeerAddr) error {
	if e.Logger != nil {
		e.Logger.Info("received", zap.Int("bytes", len(payload)), zap.Stringer("peer", peer),
			zap.ByteString("message", payload))
	}
	_, err := d.SendTo(payload, peer.Address, peer.Port)
	return err
}
