//go:build linux && io_uring
// +build linux,io_uring

// File: transport/engine_uring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "github.com/momentics/hioload-sock/internal/backend/uring"

type pair = uring.Pair

var engine = uring.New(uring.DefaultEntries)
