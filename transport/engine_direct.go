//go:build unix && !(linux && io_uring)

// File: transport/engine_direct.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "github.com/momentics/hioload-sock/internal/backend/direct"

type pair = direct.Pair

var engine direct.Engine
