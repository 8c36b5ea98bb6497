//go:build linux

package direct

import "golang.org/x/sys/unix"

const msgNoSignal = unix.MSG_NOSIGNAL
