//go:build linux

// File: internal/sockaddr/sockaddr_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockaddr

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Raw returns the kernel wire layout (sockaddr_in) for submission queues that
// take a pointer to the structure. The result is heap allocated.
func (a Inet4) Raw() *unix.RawSockaddrInet4 {
	raw := &unix.RawSockaddrInet4{Family: unix.AF_INET, Addr: a.IP}
	p := (*[2]byte)(unsafe.Pointer(&raw.Port))
	p[0] = byte(a.Port >> 8)
	p[1] = byte(a.Port)
	return raw
}

// FromRaw converts a sockaddr_in filled by the kernel.
func FromRaw(raw *unix.RawSockaddrInet4) (Inet4, bool) {
	if raw.Family != unix.AF_INET {
		return Inet4{}, false
	}
	p := (*[2]byte)(unsafe.Pointer(&raw.Port))
	return Inet4{IP: raw.Addr, Port: uint16(p[0])<<8 | uint16(p[1])}, true
}
