//go:build !unix && !windows

// File: transport/engine_unsupported.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "github.com/momentics/hioload-sock/internal/backend/unsupported"

type pair = unsupported.Pair

var engine unsupported.Engine
