// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sharded registry of live stream connections. Each session owns a context
// derived from its server's lifetime and is cancelled when removed.
package session
