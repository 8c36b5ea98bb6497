//go:build windows

// File: internal/sockaddr/sockaddr_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockaddr

import "golang.org/x/sys/windows"

// Windows returns the x/sys/windows representation used by Winsock calls.
func (a Inet4) Windows() *windows.SockaddrInet4 {
	return &windows.SockaddrInet4{Port: int(a.Port), Addr: a.IP}
}

// FromWindows converts a Winsock-reported address. ok is false for non-IPv4.
func FromWindows(sa windows.Sockaddr) (Inet4, bool) {
	in4, ok := sa.(*windows.SockaddrInet4)
	if !ok {
		return Inet4{}, false
	}
	return Inet4{IP: in4.Addr, Port: uint16(in4.Port)}, true
}
