//go:build windows
// +build windows

// File: transport/engine_iocp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "github.com/momentics/hioload-sock/internal/backend/iocp"

type pair = iocp.Pair

var engine iocp.Engine
