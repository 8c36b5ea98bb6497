// File: internal/sockaddr/sockaddr.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Address resolution helper: dotted-decimal IPv4 text plus port to the binary
// socket address every backend hands to the OS, and back.

package sockaddr

import (
	"net/netip"

	"github.com/momentics/hioload-sock/api"
)

// Wildcard spellings accepted for "any local interface".
const (
	AnyDotted = "0.0.0.0"
	AnyStar   = "*"
)

// Inet4 is a resolved IPv4 endpoint in host representation.
type Inet4 struct {
	IP   [4]byte
	Port uint16
}

// Resolve parses address and port. Only strict dotted-decimal IPv4 and the
// two wildcard forms are accepted; everything else, and any port outside
// [0, 65535], is ErrCodeInvalidArgument. The op label is used for the error.
func Resolve(op, address string, port int) (Inet4, error) {
	if port < 0 || port > 0xffff {
		return Inet4{}, api.NewError(op, api.ErrCodeInvalidArgument)
	}
	if address == AnyDotted || address == AnyStar {
		return Inet4{Port: uint16(port)}, nil
	}
	ip, err := netip.ParseAddr(address)
	if err != nil || !ip.Is4() {
		return Inet4{}, api.NewError(op, api.ErrCodeInvalidArgument)
	}
	return Inet4{IP: ip.As4(), Port: uint16(port)}, nil
}

// IsAny reports whether the address is the wildcard.
func (a Inet4) IsAny() bool { return a.IP == [4]byte{} }

// String returns the dotted-decimal address without the port.
func (a Inet4) String() string {
	return netip.AddrFrom4(a.IP).String()
}

// PeerAddr converts to the public value type.
func (a Inet4) PeerAddr() api.PeerAddr {
	return api.PeerAddr{Address: a.String(), Port: int(a.Port)}
}

// Loopback returns a copy addressed to 127.0.0.1 when a is the wildcard.
func (a Inet4) Loopback() Inet4 {
	if a.IsAny() {
		a.IP = [4]byte{127, 0, 0, 1}
	}
	return a
}
