//go:build unix

// File: internal/sockaddr/sockaddr_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockaddr

import "golang.org/x/sys/unix"

// Unix returns the x/sys/unix representation used by direct syscalls.
func (a Inet4) Unix() *unix.SockaddrInet4 {
	return &unix.SockaddrInet4{Port: int(a.Port), Addr: a.IP}
}

// FromUnix converts a kernel-reported address. ok is false for non-IPv4.
func FromUnix(sa unix.Sockaddr) (Inet4, bool) {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return Inet4{}, false
	}
	return Inet4{IP: in4.Addr, Port: uint16(in4.Port)}, true
}
