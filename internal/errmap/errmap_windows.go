//go:build windows

// File: internal/errmap/errmap_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package errmap

import (
	"errors"

	"github.com/momentics/hioload-sock/api"
	"golang.org/x/sys/windows"
)

// Winsock codes from winerror.h.
const (
	wsaeMFile         windows.Errno = 10024
	wsaeNotSock       windows.Errno = 10038
	wsaeAFNoSupport   windows.Errno = 10047
	wsaeAddrInUse     windows.Errno = 10048
	wsaeNoBufs        windows.Errno = 10055
	wsaeConnRefused   windows.Errno = 10061
	errorConnRefused  windows.Errno = 1225
	errorInvalidHdl   windows.Errno = 6
	errorNotEnoughMem windows.Errno = 8
)

func classify(err error) (api.ErrorCode, int, bool) {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return 0, 0, false
	}
	return Code(errno), int(errno), true
}

// Code returns the taxonomy code of a Winsock or Win32 error.
func Code(errno windows.Errno) api.ErrorCode {
	switch errno {
	case wsaeAddrInUse:
		return api.ErrCodeAddressInUse
	case wsaeAFNoSupport:
		return api.ErrCodeAddressFamilyUnsupported
	case wsaeConnRefused, errorConnRefused:
		return api.ErrCodeConnectionRefused
	case wsaeNotSock, errorInvalidHdl:
		return api.ErrCodeInvalidHandle
	case wsaeMFile, wsaeNoBufs, errorNotEnoughMem:
		return api.ErrCodeResourceExhausted
	default:
		return api.ErrCodeIO
	}
}
