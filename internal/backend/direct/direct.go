//go:build unix

// File: internal/backend/direct/direct.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Direct-syscall strategy: one native blocking call per logical operation.
// No execution context is attached to a handle pair.

package direct

import (
	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/errmap"
	"github.com/momentics/hioload-sock/internal/sockaddr"
	"golang.org/x/sys/unix"
)

// Pair is the handle pair of the direct strategy: a socket descriptor only.
type Pair struct {
	fd int
}

func (p *Pair) live() bool { return p != nil && p.fd >= 0 }

// FD exposes the descriptor for diagnostics; -1 once released.
func (p *Pair) FD() int {
	if p == nil {
		return -1
	}
	return p.fd
}

// Engine implements api.Backend[*Pair] with blocking syscalls.
type Engine struct{}

var _ api.Backend[*Pair] = Engine{}

// Name implements api.Backend.
func (Engine) Name() string { return "direct" }

// OpenListener implements api.Backend.
func (Engine) OpenListener(address string, port int) (*Pair, error) {
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
	return &Pair{fd: fd}, nil
}

// Accept implements api.Backend.
func (Engine) Accept(l *Pair) (*Pair, error) {
	if !l.live() {
		return nil, api.NewError("accept", api.ErrCodeInvalidHandle)
	}
	var nfd int
	err := ignoringEINTR(func() (err error) {
		nfd, _, err = unix.Accept(l.fd)
		return err
	})
	if err != nil {
		return nil, errmap.Map("accept", err)
	}
	unix.CloseOnExec(nfd)
	return &Pair{fd: nfd}, nil
}

// Connect implements api.Backend.
func (Engine) Connect(address string, port int) (*Pair, error) {
	sa, err := sockaddr.Resolve("connect", address, port)
	if err != nil {
		return nil, err
	}
	fd, err := newSocket(unix.SOCK_STREAM)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	err = unix.Connect(fd, sa.Unix())
	if err == unix.EINTR {
		// The handshake keeps going in the kernel; wait for its verdict.
		err = awaitConnect(fd)
	}
	if err != nil {
		unix.Close(fd)
		return nil, errmap.Map("connect", err)
	}
	return &Pair{fd: fd}, nil
}

// OpenDatagram implements api.Backend.
func (Engine) OpenDatagram() (*Pair, error) {
	fd, err := newSocket(unix.SOCK_DGRAM)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	return &Pair{fd: fd}, nil
}

// BindDatagram implements api.Backend.
func (Engine) BindDatagram(address string, port int) (*Pair, error) {
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
	return &Pair{fd: fd}, nil
}

// Read implements api.Backend.
func (Engine) Read(p *Pair, buf []byte) (int, error) {
	if !p.live() {
		return 0, api.NewError("read", api.ErrCodeInvalidHandle)
	}
	if len(buf) == 0 {
		return 0, api.NewError("read", api.ErrCodeInvalidArgument)
	}
	var n int
	err := ignoringEINTR(func() (err error) {
		n, err = unix.Read(p.fd, buf)
		return err
	})
	if err != nil {
		return 0, errmap.Map("read", err)
	}
	return n, nil
}

// Write implements api.Backend.
func (Engine) Write(p *Pair, data []byte) (int, error) {
	if !p.live() {
		return 0, api.NewError("write", api.ErrCodeInvalidHandle)
	}
	if len(data) == 0 {
		return 0, nil
	}
	var n int
	err := ignoringEINTR(func() (err error) {
		n, err = unix.SendmsgN(p.fd, data, nil, nil, msgNoSignal)
		return err
	})
	if err != nil {
		return 0, errmap.Map("write", err)
	}
	return n, nil
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
	var n int
	err = ignoringEINTR(func() (err error) {
		n, err = unix.SendmsgN(p.fd, data, nil, sa.Unix(), msgNoSignal)
		return err
	})
	if err != nil {
		return 0, errmap.Map("sendto", err)
	}
	if n != len(data) {
		return n, api.NewError("sendto", api.ErrCodeIO)
	}
	return n, nil
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
		n    int
		from unix.Sockaddr
	)
	err := ignoringEINTR(func() (err error) {
		n, from, err = unix.Recvfrom(p.fd, buf, 0)
		return err
	})
	if err != nil {
		return 0, api.PeerAddr{}, errmap.Map("recvfrom", err)
	}
	peer, ok := sockaddr.FromUnix(from)
	if !ok {
		return n, api.PeerAddr{}, api.NewError("recvfrom", api.ErrCodeAddressFamilyUnsupported)
	}
	return n, peer.PeerAddr(), nil
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

// Close implements api.Backend.
func (Engine) Close(p *Pair) error {
	if !p.live() {
		return nil
	}
	fd := p.fd
	p.fd = -1
	return errmap.Map("close", unix.Close(fd))
}

func newSocket(typ int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, typ, 0)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

// awaitConnect finishes a connect that was interrupted by a signal.
func awaitConnect(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	if err := ignoringEINTR(func() error {
		_, err := unix.Poll(fds, -1)
		return err
	}); err != nil {
		return err
	}
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	return nil
}

// ignoringEINTR retries fn while it fails with EINTR. The Go runtime
// preempts goroutines with signals, so blocking calls see EINTR routinely.
func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}
