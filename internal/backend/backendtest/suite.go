// File: internal/backend/backendtest/suite.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contract suite shared by every backend strategy. Each strategy's tests call
// Run with its own engine; the parity script guarantees that the same
// injected faults produce the same taxonomy codes everywhere.

package backendtest

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const loopback = "127.0.0.1"

// MalformedAddresses must be rejected with ErrCodeInvalidArgument.
var MalformedAddresses = []string{"999.1.1.1", "not.an.ip", "", "1.2.3", "::1"}

// Run executes the full contract against b.
func Run[P comparable](t *testing.T, b api.Backend[P]) {
	t.Run("InvalidArgument", func(t *testing.T) { testInvalidArgument(t, b) })
	t.Run("AddressInUse", func(t *testing.T) { testAddressInUse(t, b) })
	t.Run("EmptyPair", func(t *testing.T) { testEmptyPair(t, b) })
	t.Run("CloseIsIdempotent", func(t *testing.T) { testCloseIdempotent(t, b) })
	t.Run("Echo", func(t *testing.T) { testEcho(t, b) })
	t.Run("OrderlyClose", func(t *testing.T) { testOrderlyClose(t, b) })
	t.Run("ConnectionRefused", func(t *testing.T) { testRefused(t, b) })
	t.Run("DatagramRoundTrip", func(t *testing.T) { testDatagram(t, b) })
	t.Run("UnboundDatagram", func(t *testing.T) { testUnboundDatagram(t, b) })
	t.Run("Parity", func(t *testing.T) {
		assert.Equal(t, ExpectedScript, Script(b), "strategy %s diverges", b.Name())
	})
}

func testInvalidArgument[P comparable](t *testing.T, b api.Backend[P]) {
	for _, addr := range MalformedAddresses {
		_, err := b.OpenListener(addr, 0)
		assert.ErrorIs(t, err, api.ErrInvalidArgument, "listen %q", addr)
		_, err = b.Connect(addr, 80)
		assert.ErrorIs(t, err, api.ErrInvalidArgument, "connect %q", addr)
		_, err = b.BindDatagram(addr, 0)
		assert.ErrorIs(t, err, api.ErrInvalidArgument, "bind %q", addr)
	}
	_, err := b.OpenListener(loopback, 70000)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	d, err := b.BindDatagram(loopback, 0)
	require.NoError(t, err)
	defer b.Close(d)
	_, err = b.SendTo(d, []byte("x"), "not.an.ip", 9)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, _, err = b.RecvFrom(d, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func testAddressInUse[P comparable](t *testing.T, b api.Backend[P]) {
	first, err := b.OpenListener(loopback, 0)
	require.NoError(t, err)
	defer b.Close(first)
	addr, err := b.LocalAddr(first)
	require.NoError(t, err)

	_, err = b.OpenListener(loopback, addr.Port)
	assert.ErrorIs(t, err, api.ErrAddressInUse)

	udp, err := b.BindDatagram(loopback, 0)
	require.NoError(t, err)
	defer b.Close(udp)
	uaddr, err := b.LocalAddr(udp)
	require.NoError(t, err)
	_, err = b.BindDatagram(loopback, uaddr.Port)
	assert.ErrorIs(t, err, api.ErrAddressInUse)
}

func testEmptyPair[P comparable](t *testing.T, b api.Backend[P]) {
	var empty P
	buf := make([]byte, 8)

	_, err := b.Accept(empty)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	_, err = b.Read(empty, buf)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	_, err = b.Write(empty, buf)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	_, err = b.SendTo(empty, buf, loopback, 9)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	_, _, err = b.RecvFrom(empty, buf)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	_, err = b.LocalAddr(empty)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	assert.ErrorIs(t, b.ShutdownWrite(empty), api.ErrInvalidHandle)
	assert.NoError(t, b.Close(empty))
}

func testCloseIdempotent[P comparable](t *testing.T, b api.Backend[P]) {
	l, err := b.OpenListener(loopback, 0)
	require.NoError(t, err)
	require.NoError(t, b.Close(l))
	assert.NoError(t, b.Close(l))

	_, err = b.Accept(l)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	_, err = b.LocalAddr(l)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
}

// connectedPair returns a (client, server) stream pair over loopback.
func connectedPair[P comparable](t *testing.T, b api.Backend[P]) (P, P) {
	l, err := b.OpenListener(loopback, 0)
	require.NoError(t, err)
	defer b.Close(l)
	addr, err := b.LocalAddr(l)
	require.NoError(t, err)

	var (
		server P
		g      errgroup.Group
	)
	g.Go(func() (err error) {
		server, err = b.Accept(l)
		return err
	})
	client, err := b.Connect(loopback, addr.Port)
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	return client, server
}

func readFull[P comparable](b api.Backend[P], p P, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		k, err := b.Read(p, buf[:n-len(out)])
		if err != nil {
			return out, err
		}
		if k == 0 {
			return out, errors.New("unexpected end of stream")
		}
		out = append(out, buf[:k]...)
	}
	return out, nil
}

func writeFull[P comparable](b api.Backend[P], p P, data []byte) error {
	for len(data) > 0 {
		n, err := b.Write(p, data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func testEcho[P comparable](t *testing.T, b api.Backend[P]) {
	client, server := connectedPair(t, b)
	defer b.Close(client)
	defer b.Close(server)

	var g errgroup.Group
	g.Go(func() error {
		got, err := readFull(b, server, 4)
		if err != nil {
			return err
		}
		if string(got) != "ping" {
			return errors.New("server got " + string(got))
		}
		return writeFull(b, server, got)
	})

	require.NoError(t, writeFull(b, client, []byte("ping")))
	echo, err := readFull(b, client, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), echo)
	require.NoError(t, g.Wait())

	n, err := b.Write(client, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
	_, err = b.Read(client, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func testOrderlyClose[P comparable](t *testing.T, b api.Backend[P]) {
	client, server := connectedPair(t, b)
	defer b.Close(client)
	defer b.Close(server)

	require.NoError(t, writeFull(b, client, []byte("bye")))
	require.NoError(t, b.ShutdownWrite(client))

	got, err := readFull(b, server, 3)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(got))

	n, err := b.Read(server, make([]byte, 16))
	assert.NoError(t, err)
	assert.Zero(t, n)

	// The half-closed side still receives.
	require.NoError(t, writeFull(b, server, []byte("ack")))
	got, err = readFull(b, client, 3)
	require.NoError(t, err)
	assert.Equal(t, "ack", string(got))
}

func testRefused[P comparable](t *testing.T, b api.Backend[P]) {
	l, err := b.OpenListener(loopback, 0)
	require.NoError(t, err)
	addr, err := b.LocalAddr(l)
	require.NoError(t, err)
	require.NoError(t, b.Close(l))

	_, err = b.Connect(loopback, addr.Port)
	assert.ErrorIs(t, err, api.ErrConnectionRefused)
}

func testDatagram[P comparable](t *testing.T, b api.Backend[P]) {
	a, err := b.BindDatagram(loopback, 0)
	require.NoError(t, err)
	defer b.Close(a)
	sender, err := b.BindDatagram(loopback, 0)
	require.NoError(t, err)
	defer b.Close(sender)

	aAddr, err := b.LocalAddr(a)
	require.NoError(t, err)
	senderAddr, err := b.LocalAddr(sender)
	require.NoError(t, err)

	n, err := b.SendTo(sender, []byte("hello"), loopback, aAddr.Port)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 64)
	n, from, err := b.RecvFrom(a, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, senderAddr, from)
}

func testUnboundDatagram[P comparable](t *testing.T, b api.Backend[P]) {
	srv, err := b.BindDatagram(loopback, 0)
	require.NoError(t, err)
	defer b.Close(srv)
	srvAddr, err := b.LocalAddr(srv)
	require.NoError(t, err)

	c, err := b.OpenDatagram()
	require.NoError(t, err)
	defer b.Close(c)

	_, err = b.SendTo(c, []byte("hi"), loopback, srvAddr.Port)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, from, err := b.RecvFrom(srv, buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))
	assert.NotZero(t, from.Port)

	_, err = b.SendTo(srv, buf[:n], from.Address, from.Port)
	require.NoError(t, err)
	n, reply, err := b.RecvFrom(c, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))
	assert.Equal(t, srvAddr, reply)
}
