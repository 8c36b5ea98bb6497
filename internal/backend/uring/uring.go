//go:build linux

// File: internal/backend/uring/uring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Submission/completion queue strategy. Every handle pair owns a private
// ring; each logical operation is one submission followed by a blocking wait
// for its matching completion. Socket creation, bind, listen, getsockname,
// shutdown and close stay direct syscalls.

package uring

import (
	"runtime"
	"unsafe"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/errmap"
	"github.com/momentics/hioload-sock/internal/sockaddr"
	"golang.org/x/sys/unix"
)

// DefaultEntries is the submission queue depth of every private ring.
const DefaultEntries = 32

// Pair is the handle pair of this strategy: the socket and its ring.
type Pair struct {
	fd   int
	ring *Ring
}

func (p *Pair) live() bool { return p != nil && p.fd >= 0 }

// FD exposes the descriptor for diagnostics; -1 once released.
func (p *Pair) FD() int {
	if p == nil {
		return -1
	}
	return p.fd
}

// Engine implements api.Backend[*Pair] on io_uring.
type Engine struct {
	entries uint32
}

var _ api.Backend[*Pair] = Engine{}

// New returns an engine whose rings have the given depth. Zero selects
// DefaultEntries.
func New(entries uint32) Engine {
	if entries == 0 {
		entries = DefaultEntries
	}
	return Engine{entries: entries}
}

// Probe creates and destroys one ring. It reports ErrCodePlatformUnsupported
// when the kernel (or a seccomp policy) refuses io_uring.
func Probe() error {
	r, err := newRing(1)
	if err != nil {
		return err
	}
	return r.Close()
}

// Name implements api.Backend.
func (Engine) Name() string { return "io_uring" }

func (e Engine) depth() uint32 {
	if e.entries == 0 {
		return DefaultEntries
	}
	return e.entries
}

// attach wraps fd into a pair with a fresh ring. fd is closed on failure.
func (e Engine) attach(fd int) (*Pair, error) {
	r, err := newRing(e.depth())
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Pair{fd: fd, ring: r}, nil
}

// OpenListener implements api.Backend.
func (e Engine) OpenListener(address string, port int) (*Pair, error) {
	sa, err := sockaddr.Resolve("bind", address, port)
	if err != nil {
		return nil, err
	}
	fd, err := newSocket(unix.SOCK_STREAM)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, sa.Unix()); err != nil {
		unix.Close(fd)
		return nil, errmap.Map("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, errmap.Map("listen", err)
	}
	return e.attach(fd)
}

// Accept implements api.Backend.
func (e Engine) Accept(l *Pair) (*Pair, error) {
	if !l.live() {
		return nil, api.NewError("accept", api.ErrCodeInvalidHandle)
	}
	res, err := l.submit("accept", &sqe{
		opcode:  opAccept,
		fd:      int32(l.fd),
		opFlags: unix.SOCK_CLOEXEC,
	})
	if err != nil {
		return nil, err
	}
	return e.attach(int(res))
}

// Connect implements api.Backend.
func (e Engine) Connect(address string, port int) (*Pair, error) {
	sa, err := sockaddr.Resolve("connect", address, port)
	if err != nil {
		return nil, err
	}
	fd, err := newSocket(unix.SOCK_STREAM)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	p, err := e.attach(fd)
	if err != nil {
		return nil, err
	}

	raw := sa.Raw()
	var pin runtime.Pinner
	pin.Pin(raw)
	defer pin.Unpin()

	res, err := p.ring.do("connect", &sqe{
		opcode: opConnect,
		fd:     int32(fd),
		addr:   uint64(uintptr(unsafe.Pointer(raw))),
		off:    uint64(unix.SizeofSockaddrInet4),
	})
	if err == nil && res < 0 {
		err = errmap.Map("connect", unix.Errno(-res))
	}
	if err != nil {
		e.Close(p)
		return nil, err
	}
	return p, nil
}

// OpenDatagram implements api.Backend.
func (e Engine) OpenDatagram() (*Pair, error) {
	fd, err := newSocket(unix.SOCK_DGRAM)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	return e.attach(fd)
}

// BindDatagram implements api.Backend.
func (e Engine) BindDatagram(address string, port int) (*Pair, error) {
	sa, err := sockaddr.Resolve("bind", address, port)
	if err != nil {
		return nil, err
	}
	fd, err := newSocket(unix.SOCK_DGRAM)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	if err := unix.Bind(fd, sa.Unix()); err != nil {
		unix.Close(fd)
		return nil, errmap.Map("bind", err)
	}
	return e.attach(fd)
}

// Read implements api.Backend.
func (Engine) Read(p *Pair, buf []byte) (int, error) {
	if !p.live() {
		return 0, api.NewError("read", api.ErrCodeInvalidHandle)
	}
	if len(buf) == 0 {
		return 0, api.NewError("read", api.ErrCodeInvalidArgument)
	}
	var pin runtime.Pinner
	pin.Pin(&buf[0])
	defer pin.Unpin()

	res, err := p.submit("read", &sqe{
		opcode: opRecv,
		fd:     int32(p.fd),
		addr:   uint64(uintptr(unsafe.Pointer(&buf[0]))),
		len:    uint32(len(buf)),
	})
	if err != nil {
		return 0, err
	}
	return int(res), nil
}

// Write implements api.Backend.
func (Engine) Write(p *Pair, data []byte) (int, error) {
	if !p.live() {
		return 0, api.NewError("write", api.ErrCodeInvalidHandle)
	}
	if len(data) == 0 {
		return 0, nil
	}
	var pin runtime.Pinner
	pin.Pin(&data[0])
	defer pin.Unpin()

	res, err := p.submit("write", &sqe{
		opcode:  opSend,
		fd:      int32(p.fd),
		addr:    uint64(uintptr(unsafe.Pointer(&data[0]))),
		len:     uint32(len(data)),
		opFlags: unix.MSG_NOSIGNAL,
	})
	if err != nil {
		return 0, err
	}
	return int(res), nil
}

// SendTo implements api.Backend. A datagram is delivered whole or not at all.
func (Engine) SendTo(p *Pair, data []byte, address string, port int) (int, error) {
	if !p.live() {
		return 0, api.NewError("sendto", api.ErrCodeInvalidHandle)
	}
	sa, err := sockaddr.Resolve("sendto", address, port)
	if err != nil {
		return 0, err
	}

	var (
		pin runtime.Pinner
		iov unix.Iovec
		msg unix.Msghdr
	)
	defer pin.Unpin()
	raw := sa.Raw()
	pin.Pin(raw)
	if len(data) > 0 {
		pin.Pin(&data[0])
		iov.Base = &data[0]
		iov.SetLen(len(data))
	}
	pin.Pin(&iov)
	msg.Name = (*byte)(unsafe.Pointer(raw))
	msg.Namelen = unix.SizeofSockaddrInet4
	msg.Iov = &iov
	msg.SetIovlen(1)
	pin.Pin(&msg)

	res, err := p.submit("sendto", &sqe{
		opcode:  opSendmsg,
		fd:      int32(p.fd),
		addr:    uint64(uintptr(unsafe.Pointer(&msg))),
		len:     1,
		opFlags: unix.MSG_NOSIGNAL,
	})
	if err != nil {
		return 0, err
	}
	if int(res) != len(data) {
		return int(res), api.NewError("sendto", api.ErrCodeIO)
	}
	return int(res), nil
}

// RecvFrom implements api.Backend.
func (Engine) RecvFrom(p *Pair, buf []byte) (int, api.PeerAddr, error) {
	if !p.live() {
		return 0, api.PeerAddr{}, api.NewError("recvfrom", api.ErrCodeInvalidHandle)
	}
	if len(buf) == 0 {
		return 0, api.PeerAddr{}, api.NewError("recvfrom", api.ErrCodeInvalidArgument)
	}

	var (
		pin  runtime.Pinner
		from unix.RawSockaddrAny
		iov  unix.Iovec
		msg  unix.Msghdr
	)
	defer pin.Unpin()
	pin.Pin(&buf[0])
	pin.Pin(&from)
	iov.Base = &buf[0]
	iov.SetLen(len(buf))
	pin.Pin(&iov)
	msg.Name = (*byte)(unsafe.Pointer(&from))
	msg.Namelen = unix.SizeofSockaddrAny
	msg.Iov = &iov
	msg.SetIovlen(1)
	pin.Pin(&msg)

	res, err := p.submit("recvfrom", &sqe{
		opcode: opRecvmsg,
		fd:     int32(p.fd),
		addr:   uint64(uintptr(unsafe.Pointer(&msg))),
		len:    1,
	})
	if err != nil {
		return 0, api.PeerAddr{}, err
	}
	peer, ok := sockaddr.FromRaw((*unix.RawSockaddrInet4)(unsafe.Pointer(&from)))
	if !ok {
		return int(res), api.PeerAddr{}, api.NewError("recvfrom", api.ErrCodeAddressFamilyUnsupported)
	}
	return int(res), peer.PeerAddr(), nil
}

// LocalAddr implements api.Backend.
func (Engine) LocalAddr(p *Pair) (api.PeerAddr, error) {
	if !p.live() {
		return api.PeerAddr{}, api.NewError("getsockname", api.ErrCodeInvalidHandle)
	}
	sa, err := unix.Getsockname(p.fd)
	if err != nil {
		return api.PeerAddr{}, errmap.Map("getsockname", err)
	}
	in4, ok := sockaddr.FromUnix(sa)
	if !ok {
		return api.PeerAddr{}, api.NewError("getsockname", api.ErrCodeAddressFamilyUnsupported)
	}
	return in4.PeerAddr(), nil
}

// ShutdownWrite implements api.Backend.
func (Engine) ShutdownWrite(p *Pair) error {
	if !p.live() {
		return api.NewError("shutdown", api.ErrCodeInvalidHandle)
	}
	return errmap.Map("shutdown", unix.Shutdown(p.fd, unix.SHUT_WR))
}

// Close implements api.Backend. The ring goes first, then the socket.
func (Engine) Close(p *Pair) error {
	if !p.live() {
		return nil
	}
	fd := p.fd
	p.fd = -1
	ringErr := p.ring.Close()
	p.ring = nil
	if err := unix.Close(fd); err != nil {
		return errmap.Map("close", err)
	}
	return errmap.Map("close", ringErr)
}

// submit runs one operation on the pair's ring, retrying completions that
// were interrupted, and maps a negative result to the taxonomy.
func (p *Pair) submit(op string, e *sqe) (int32, error) {
	for {
		entry := *e
		res, err := p.ring.do(op, &entry)
		if err != nil {
			return 0, err
		}
		if res == -int32(unix.EINTR) {
			continue
		}
		if res < 0 {
			return 0, errmap.Map(op, unix.Errno(-res))
		}
		return res, nil
	}
}

func newSocket(typ int) (int, error) {
	return unix.Socket(unix.AF_INET, typ|unix.SOCK_CLOEXEC, 0)
}
