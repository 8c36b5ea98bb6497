// File: transport/datagram.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"runtime"

	"github.com/momentics/hioload-sock/api"
	"go.uber.org/zap"
)

// DatagramSocket sends and receives whole UDP messages. It has no persistent
// peer: every send names its target and every receive reports its sender.
//
// State machine: Empty -> Bound -> Closed. An unbound socket is Bound once
// created; the OS assigns its port on the first send.
type DatagramSocket struct {
	noCopy noCopy
	h      handle
}

func newDatagram(p *pair) *DatagramSocket {
	d := &DatagramSocket{h: handle{p: p, kind: "datagram"}}
	onOpen(d.h.kind)
	runtime.SetFinalizer(d, (*DatagramSocket).finalize)
	return d
}

func (d *DatagramSocket) finalize() { d.h.leaked() }

// BindDatagram creates a datagram socket bound to address:port.
func BindDatagram(address string, port int) (*DatagramSocket, error) {
	p, err := engine.BindDatagram(address, port)
	observe("bind", 0, err)
	if err != nil {
		return nil, err
	}
	Logger().Debug("datagram bound", zap.String("addr", api.PeerAddr{Address: address, Port: port}.String()))
	return newDatagram(p), nil
}

// OpenDatagram creates an unbound datagram socket for client use.
func OpenDatagram() (*DatagramSocket, error) {
	p, err := engine.OpenDatagram()
	observe("socket", 0, err)
	if err != nil {
		return nil, err
	}
	return newDatagram(p), nil
}

// SendTo transmits data as one datagram to address:port. A datagram that
// cannot be sent whole fails with ErrCodeIO.
func (d *DatagramSocket) SendTo(data []byte, address string, port int) (int, error) {
	if d == nil || d.h.empty() {
		return 0, invalid("sendto")
	}
	n, err := engine.SendTo(d.h.p, data, address, port)
	runtime.KeepAlive(d)
	observe("sendto", n, err)
	return n, err
}

// RecvFrom blocks for one datagram, copies it into buf and reports the
// sender. A message longer than buf is truncated to len(buf).
func (d *DatagramSocket) RecvFrom(buf []byte) (int, api.PeerAddr, error) {
	if d == nil || d.h.empty() {
		return 0, api.PeerAddr{}, invalid("recvfrom")
	}
	n, from, err := engine.RecvFrom(d.h.p, buf)
	runtime.KeepAlive(d)
	observe("recvfrom", n, err)
	return n, from, err
}

// LocalAddr returns the bound local address.
func (d *DatagramSocket) LocalAddr() (api.PeerAddr, error) {
	if d == nil || d.h.empty() {
		return api.PeerAddr{}, invalid("getsockname")
	}
	a, err := engine.LocalAddr(d.h.p)
	runtime.KeepAlive(d)
	return a, err
}

// Move transfers the socket into a new DatagramSocket and leaves d empty.
func (d *DatagramSocket) Move() *DatagramSocket {
	if d == nil || d.h.empty() {
		return &DatagramSocket{h: handle{kind: "datagram"}}
	}
	out := &DatagramSocket{h: handle{p: d.h.take(), kind: "datagram"}}
	runtime.SetFinalizer(out, (*DatagramSocket).finalize)
	return out
}

// Close releases the socket. Idempotent.
func (d *DatagramSocket) Close() error {
	if d == nil {
		return nil
	}
	runtime.SetFinalizer(d, nil)
	return d.h.release()
}

// State reports the lifecycle state.
func (d *DatagramSocket) State() api.State {
	if d == nil {
		return api.StateEmpty
	}
	return d.h.state(api.StateBound)
}
