//go:build !unix && !windows

package errmap

import "github.com/momentics/hioload-sock/api"

func classify(error) (api.ErrorCode, int, bool) { return 0, 0, false }
