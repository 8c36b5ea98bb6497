//go:build unix

// File: internal/errmap/errmap_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package errmap

import (
	"errors"

	"github.com/momentics/hioload-sock/api"
	"golang.org/x/sys/unix"
)

func classify(err error) (api.ErrorCode, int, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return 0, 0, false
	}
	return Code(errno), int(errno), true
}

// Code returns the taxonomy code of a unix errno.
func Code(errno unix.Errno) api.ErrorCode {
	switch errno {
	case unix.EADDRINUSE:
		return api.ErrCodeAddressInUse
	case unix.EAFNOSUPPORT, unix.EPFNOSUPPORT:
		return api.ErrCodeAddressFamilyUnsupported
	case unix.ECONNREFUSED:
		return api.ErrCodeConnectionRefused
	case unix.EBADF, unix.ENOTSOCK:
		return api.ErrCodeInvalidHandle
	case unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM, unix.EBUSY, unix.EAGAIN:
		return api.ErrCodeResourceExhausted
	case unix.ENOSYS:
		return api.ErrCodePlatformUnsupported
	default:
		return api.ErrCodeIO
	}
}
