package sockaddr_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/sockaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		addr string
		port int
	}{
		{"127.0.0.1", 0},
		{"255.255.255.255", 65535},
		{"10.0.0.1", 9090},
		{"0.0.0.0", 80},
	}
	for i := 0; i < 200; i++ {
		cases = append(cases, struct {
			addr string
			port int
		}{
			fmt.Sprintf("%d.%d.%d.%d", rng.Intn(256), rng.Intn(256), rng.Intn(256), rng.Intn(256)),
			rng.Intn(65536),
		})
	}

	for _, c := range cases {
		a, err := sockaddr.Resolve("bind", c.addr, c.port)
		require.NoError(t, err, c.addr)
		assert.Equal(t, api.PeerAddr{Address: c.addr, Port: c.port}, a.PeerAddr())
	}
}

func TestResolveWildcard(t *testing.T) {
	a, err := sockaddr.Resolve("bind", "*", 12345)
	require.NoError(t, err)
	assert.True(t, a.IsAny())
	assert.Equal(t, "0.0.0.0", a.String())
	assert.Equal(t, "127.0.0.1", a.Loopback().String())

	b, err := sockaddr.Resolve("bind", "10.1.2.3", 1)
	require.NoError(t, err)
	assert.Equal(t, b, b.Loopback())
}

func TestResolveRejectsMalformed(t *testing.T) {
	for _, addr := range []string{
		"999.1.1.1", "not.an.ip", "", "1.2.3", "1.2.3.4.5", "01.2.3.4",
		"::1", "::ffff:127.0.0.1", "localhost", " 127.0.0.1", "1.2.3.4:80",
	} {
		_, err := sockaddr.Resolve("connect", addr, 80)
		assert.ErrorIs(t, err, api.ErrInvalidArgument, "%q", addr)
	}
}

func TestResolveRejectsPort(t *testing.T) {
	for _, port := range []int{-1, 65536, 1 << 20} {
		_, err := sockaddr.Resolve("bind", "127.0.0.1", port)
		assert.ErrorIs(t, err, &api.Error{Code: api.ErrCodeInvalidArgument, Op: "bind"}, "%d", port)
	}
}
