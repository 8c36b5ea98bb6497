//go:build windows

// File: internal/backend/iocp/iocp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion-port strategy. Every handle pair owns an overlapped socket, a
// private completion port and a reaper goroutine. Each logical operation is
// issued overlapped and the caller blocks until the reaper delivers its
// completion.

package iocp

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/errmap"
	"github.com/momentics/hioload-sock/internal/sockaddr"
	"golang.org/x/sys/windows"
)

const (
	soUpdateAcceptContext  = 0x700b
	soUpdateConnectContext = 0x7010
	sioUDPConnReset        = 0x9800000c
	wsaFlagNoHandleInherit = 0x80

	// AcceptEx wants room for both addresses plus 16 bytes each.
	acceptAddrLen = unsafe.Sizeof(windows.RawSockaddrInet4{}) + 16
)

var (
	wsaOnce sync.Once
	wsaErr  error
)

func startup() error {
	wsaOnce.Do(func() {
		var data windows.WSAData
		wsaErr = windows.WSAStartup(uint32(0x0202), &data)
	})
	return wsaErr
}

// Pair is the handle pair of this strategy: the socket and its port.
type Pair struct {
	sock windows.Handle
	port *port
}

func (p *Pair) live() bool { return p != nil && p.sock != windows.InvalidHandle }

// Handle exposes the socket for diagnostics; InvalidHandle once released.
func (p *Pair) Handle() windows.Handle {
	if p == nil {
		return windows.InvalidHandle
	}
	return p.sock
}

// Engine implements api.Backend[*Pair] on I/O completion ports.
type Engine struct{}

var _ api.Backend[*Pair] = Engine{}

// Name implements api.Backend.
func (Engine) Name() string { return "iocp" }

func newSocket(typ, proto int32) (windows.Handle, error) {
	if err := startup(); err != nil {
		return windows.InvalidHandle, err
	}
	return windows.WSASocket(windows.AF_INET, typ, proto, nil, 0,
		windows.WSA_FLAG_OVERLAPPED|wsaFlagNoHandleInherit)
}

// attach starts the port and reaper for sock. sock is closed on failure.
func attach(sock windows.Handle) (*Pair, error) {
	pt, err := newPort(sock)
	if err != nil {
		windows.Closesocket(sock)
		return nil, errmap.Map("CreateIoCompletionPort", err)
	}
	return &Pair{sock: sock, port: pt}, nil
}

// await issues one overlapped request and blocks for its completion.
func (p *Pair) await(op string, start func(*windows.Overlapped) error) (uint32, error) {
	o := p.port.begin()
	if err := start(&o.o); err != nil && err != windows.ERROR_IO_PENDING {
		p.port.forget(o)
		return 0, errmap.Map(op, err)
	}
	r := <-o.done
	if r.err != nil {
		return 0, errmap.Map(op, r.err)
	}
	return r.qty, nil
}

// OpenListener implements api.Backend.
func (Engine) OpenListener(address string, port int) (*Pair, error) {
	sa, err := sockaddr.Resolve("bind", address, port)
	if err != nil {
		return nil, err
	}
	sock, err := newSocket(windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	if err := windows.Bind(sock, sa.Windows()); err != nil {
		windows.Closesocket(sock)
		return nil, errmap.Map("bind", err)
	}
	if err := windows.Listen(sock, windows.SOMAXCONN); err != nil {
		windows.Closesocket(sock)
		return nil, errmap.Map("listen", err)
	}
	return attach(sock)
}

// Accept implements api.Backend.
func (Engine) Accept(l *Pair) (*Pair, error) {
	if !l.live() {
		return nil, api.NewError("accept", api.ErrCodeInvalidHandle)
	}
	sock, err := newSocket(windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}

	var pin runtime.Pinner
	defer pin.Unpin()
	buf := make([]byte, 2*acceptAddrLen)
	pin.Pin(&buf[0])
	var received uint32
	_, err = l.await("accept", func(ov *windows.Overlapped) error {
		return windows.AcceptEx(l.sock, sock, &buf[0], 0,
			uint32(acceptAddrLen), uint32(acceptAddrLen), &received, ov)
	})
	if err != nil {
		windows.Closesocket(sock)
		return nil, err
	}
	ls := l.sock
	if err := windows.Setsockopt(sock, windows.SOL_SOCKET, soUpdateAcceptContext,
		(*byte)(unsafe.Pointer(&ls)), int32(unsafe.Sizeof(ls))); err != nil {
		windows.Closesocket(sock)
		return nil, errmap.Map("accept", err)
	}
	return attach(sock)
}

// Connect implements api.Backend.
func (Engine) Connect(address string, port int) (*Pair, error) {
	sa, err := sockaddr.Resolve("connect", address, port)
	if err != nil {
		return nil, err
	}
	sock, err := newSocket(windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	// ConnectEx requires a bound socket.
	if err := windows.Bind(sock, &windows.SockaddrInet4{}); err != nil {
		windows.Closesocket(sock)
		return nil, errmap.Map("bind", err)
	}
	p, err := attach(sock)
	if err != nil {
		return nil, err
	}
	_, err = p.await("connect", func(ov *windows.Overlapped) error {
		return windows.ConnectEx(sock, sa.Windows(), nil, 0, nil, ov)
	})
	if err == nil {
		err = errmap.Map("connect", windows.Setsockopt(sock, windows.SOL_SOCKET, soUpdateConnectContext, nil, 0))
	}
	if err != nil {
		Engine{}.Close(p)
		return nil, err
	}
	return p, nil
}

// OpenDatagram implements api.Backend.
func (Engine) OpenDatagram() (*Pair, error) {
	sock, err := newSocket(windows.SOCK_DGRAM, windows.IPPROTO_UDP)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	disableConnReset(sock)
	return attach(sock)
}

// BindDatagram implements api.Backend.
func (Engine) BindDatagram(address string, port int) (*Pair, error) {
	sa, err := sockaddr.Resolve("bind", address, port)
	if err != nil {
		return nil, err
	}
	sock, err := newSocket(windows.SOCK_DGRAM, windows.IPPROTO_UDP)
	if err != nil {
		return nil, errmap.Map("socket", err)
	}
	if err := windows.Bind(sock, sa.Windows()); err != nil {
		windows.Closesocket(sock)
		return nil, errmap.Map("bind", err)
	}
	disableConnReset(sock)
	return attach(sock)
}

// disableConnReset stops ICMP port-unreachable from failing later receives
// on a datagram socket.
func disableConnReset(sock windows.Handle) {
	var off uint32
	var ret uint32
	_ = windows.WSAIoctl(sock, sioUDPConnReset, (*byte)(unsafe.Pointer(&off)), 4, nil, 0, &ret, nil, 0)
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
	defer pin.Unpin()
	pin.Pin(&buf[0])
	wb := windows.WSABuf{Len: uint32(len(buf)), Buf: &buf[0]}
	var n, flags uint32
	qty, err := p.await("read", func(ov *windows.Overlapped) error {
		return windows.WSARecv(p.sock, &wb, 1, &n, &flags, ov, nil)
	})
	return int(qty), err
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
	defer pin.Unpin()
	pin.Pin(&data[0])
	wb := windows.WSABuf{Len: uint32(len(data)), Buf: &data[0]}
	var n uint32
	qty, err := p.await("write", func(ov *windows.Overlapped) error {
		return windows.WSASend(p.sock, &wb, 1, &n, 0, ov, nil)
	})
	return int(qty), err
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
	var pin runtime.Pinner
	defer pin.Unpin()
	var wb windows.WSABuf
	if len(data) > 0 {
		pin.Pin(&data[0])
		wb = windows.WSABuf{Len: uint32(len(data)), Buf: &data[0]}
	}
	var n uint32
	qty, err := p.await("sendto", func(ov *windows.Overlapped) error {
		return windows.WSASendto(p.sock, &wb, 1, &n, 0, sa.Windows(), ov, nil)
	})
	if err != nil {
		return 0, err
	}
	if int(qty) != len(data) {
		return int(qty), api.NewError("sendto", api.ErrCodeIO)
	}
	return int(qty), nil
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
		pin     runtime.Pinner
		from    = new(windows.RawSockaddrAny)
		fromLen = new(int32)
	)
	defer pin.Unpin()
	pin.Pin(&buf[0])
	pin.Pin(from)
	pin.Pin(fromLen)
	*fromLen = int32(unsafe.Sizeof(*from))
	wb := windows.WSABuf{Len: uint32(len(buf)), Buf: &buf[0]}
	var n, flags uint32
	qty, err := p.await("recvfrom", func(ov *windows.Overlapped) error {
		return windows.WSARecvFrom(p.sock, &wb, 1, &n, &flags, from, fromLen, ov, nil)
	})
	if err != nil {
		return 0, api.PeerAddr{}, err
	}
	sa, err := from.Sockaddr()
	if err != nil {
		return int(qty), api.PeerAddr{}, api.WrapNative("recvfrom", api.ErrCodeAddressFamilyUnsupported, 0, err)
	}
	peer, ok := sockaddr.FromWindows(sa)
	if !ok {
		return int(qty), api.PeerAddr{}, api.NewError("recvfrom", api.ErrCodeAddressFamilyUnsupported)
	}
	return int(qty), peer.PeerAddr(), nil
}

// LocalAddr implements api.Backend.
func (Engine) LocalAddr(p *Pair) (api.PeerAddr, error) {
	if !p.live() {
		return api.PeerAddr{}, api.NewError("getsockname", api.ErrCodeInvalidHandle)
	}
	sa, err := windows.Getsockname(p.sock)
	if err != nil {
		return api.PeerAddr{}, errmap.Map("getsockname", err)
	}
	in4, ok := sockaddr.FromWindows(sa)
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
	return errmap.Map("shutdown", windows.Shutdown(p.sock, windows.SHUT_WR))
}

// Close implements api.Backend. The reaper is stopped and joined before the
// socket is released.
func (Engine) Close(p *Pair) error {
	if !p.live() {
		return nil
	}
	sock := p.sock
	p.sock = windows.InvalidHandle
	portErr := p.port.stop()
	if err := windows.Closesocket(sock); err != nil {
		return errmap.Map("closesocket", err)
	}
	return errmap.Map("close", portErr)
}
