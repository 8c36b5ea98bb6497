// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level value types: peer addresses and entity lifecycle states.

package api

import "strconv"

// PeerAddr identifies one end of a stream or the sender/target of a datagram.
type PeerAddr struct {
	Address string // dotted-decimal IPv4
	Port    int
}

func (a PeerAddr) String() string {
	return a.Address + ":" + strconv.Itoa(a.Port)
}

// State enumerates the lifecycle of a Stream, Listener or DatagramSocket.
type State int

const (
	StateEmpty State = iota
	StateConnected
	StateListening
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	default:
		return "empty"
	}
}
