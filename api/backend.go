// File: api/backend.go
// Author: momentics <momentics@gmail.com>
//
// Capability set implemented by every backend execution strategy.

package api

// Backend is the capability set of one execution strategy. P is the
// strategy's handle pair pointer; a nil P is the empty pair and every
// operation on it fails with ErrCodeInvalidHandle.
//
// Exactly one strategy is compiled into the transport package, which calls
// the concrete type directly. The interface exists so that the shared
// contract suite can drive every strategy through the same script.
//
// Precondition for all methods: at most one operation is outstanding on a
// given pair at any time.
type Backend[P any] interface {
	// Name identifies the strategy ("direct", "io_uring", "iocp", ...).
	Name() string

	OpenListener(address string, port int) (P, error)
	Accept(listener P) (P, error)
	Connect(address string, port int) (P, error)

	// OpenDatagram creates an unbound datagram socket; the OS assigns an
	// ephemeral port on first send.
	OpenDatagram() (P, error)
	BindDatagram(address string, port int) (P, error)

	Read(p P, buf []byte) (int, error)
	Write(p P, data []byte) (int, error)
	SendTo(p P, data []byte, address string, port int) (int, error)
	RecvFrom(p P, buf []byte) (int, PeerAddr, error)

	LocalAddr(p P) (PeerAddr, error)
	ShutdownWrite(p P) error

	// Close releases every native resource of the pair. It is idempotent.
	Close(p P) error
}
