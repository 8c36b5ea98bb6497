// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection state: identifier, start time and cancellation.

package session

import (
	"context"
	"time"

	"github.com/momentics/hioload-sock/api"
)

// Session is one accepted stream as seen by the server.
type Session struct {
	id      string
	local   api.PeerAddr
	started time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Local is the listener address the stream arrived on.
func (s *Session) Local() api.PeerAddr { return s.local }

// Started is when the session was opened.
func (s *Session) Started() time.Time { return s.started }

// Context is cancelled when the session is closed or its parent ends.
func (s *Session) Context() context.Context { return s.ctx }

// Done returns a channel closed upon cancellation.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Cancel signals session teardown; idempotent.
func (s *Session) Cancel() { s.cancel() }
