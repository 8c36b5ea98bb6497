// File: internal/backend/unsupported/unsupported.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fallback strategy for platforms with no native backend. Every constructor
// fails with ErrCodePlatformUnsupported; operations on the empty pair behave
// like every other strategy.

package unsupported

import "github.com/momentics/hioload-sock/api"

// Pair never holds a native resource.
type Pair struct{}

// Engine implements api.Backend[*Pair] by refusing to create anything.
type Engine struct{}

var _ api.Backend[*Pair] = Engine{}

func refuse(op string) error { return api.NewError(op, api.ErrCodePlatformUnsupported) }

func invalid(op string) error { return api.NewError(op, api.ErrCodeInvalidHandle) }

// Name implements api.Backend.
func (Engine) Name() string { return "unsupported" }

// OpenListener implements api.Backend.
func (Engine) OpenListener(string, int) (*Pair, error) { return nil, refuse("listen") }

// Accept implements api.Backend.
func (Engine) Accept(*Pair) (*Pair, error) { return nil, invalid("accept") }

// Connect implements api.Backend.
func (Engine) Connect(string, int) (*Pair, error) { return nil, refuse("connect") }

// OpenDatagram implements api.Backend.
func (Engine) OpenDatagram() (*Pair, error) { return nil, refuse("socket") }

// BindDatagram implements api.Backend.
func (Engine) BindDatagram(string, int) (*Pair, error) { return nil, refuse("bind") }

// Read implements api.Backend.
func (Engine) Read(*Pair, []byte) (int, error) { return 0, invalid("read") }

// Write implements api.Backend.
func (Engine) Write(*Pair, []byte) (int, error) { return 0, invalid("write") }

// SendTo implements api.Backend.
func (Engine) SendTo(*Pair, []byte, string, int) (int, error) { return 0, invalid("sendto") }

// RecvFrom implements api.Backend.
func (Engine) RecvFrom(*Pair, []byte) (int, api.PeerAddr, error) {
	return 0, api.PeerAddr{}, invalid("recvfrom")
}

// LocalAddr implements api.Backend.
func (Engine) LocalAddr(*Pair) (api.PeerAddr, error) { return api.PeerAddr{}, invalid("getsockname") }

// ShutdownWrite implements api.Backend.
func (Engine) ShutdownWrite(*Pair) error { return invalid("shutdown") }

// Close implements api.Backend.
func (Engine) Close(*Pair) error { return nil }
