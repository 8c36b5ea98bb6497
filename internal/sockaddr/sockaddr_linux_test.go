//go:build linux

package sockaddr_test

import (
	"testing"

	"github.com/momentics/hioload-sock/internal/sockaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRawNetworkByteOrder(t *testing.T) {
	a, err := sockaddr.Resolve("bind", "192.168.1.20", 0x1f90)
	require.NoError(t, err)

	raw := a.Raw()
	assert.Equal(t, uint16(unix.AF_INET), uint16(raw.Family))
	assert.Equal(t, [4]byte{192, 168, 1, 20}, raw.Addr)

	back, ok := sockaddr.FromRaw(raw)
	require.True(t, ok)
	assert.Equal(t, a, back)

	u, ok := sockaddr.FromUnix(a.Unix())
	require.True(t, ok)
	assert.Equal(t, a, u)

	_, ok = sockaddr.FromUnix(&unix.SockaddrInet6{})
	assert.False(t, ok)
}
