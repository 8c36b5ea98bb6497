//go:build windows

package iocp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func newTestPort(t *testing.T) *port {
	t.Helper()
	require.NoError(t, startup())
	sock, err := newSocket(windows.SOCK_DGRAM, windows.IPPROTO_UDP)
	require.NoError(t, err)
	t.Cleanup(func() { windows.Closesocket(sock) })
	p, err := newPort(sock)
	require.NoError(t, err)
	return p
}

func TestReaperDeliversByToken(t *testing.T) {
	p := newTestPort(t)
	defer p.stop()

	o := p.begin()
	require.Equal(t, 1, p.outstanding())
	require.NoError(t, windows.PostQueuedCompletionStatus(p.h, 42, 0, &o.o))

	select {
	case r := <-o.done:
		assert.Equal(t, uint32(42), r.qty)
		assert.NoError(t, r.err)
	case <-time.After(5 * time.Second):
		t.Fatal("completion not delivered")
	}
	assert.Zero(t, p.outstanding())
}

func TestReaperDropsUnknownToken(t *testing.T) {
	p := newTestPort(t)
	defer p.stop()

	stray := &operation{token: 999, done: make(chan result, 1)}
	require.NoError(t, windows.PostQueuedCompletionStatus(p.h, 1, 0, &stray.o))

	// A registered operation posted afterwards still gets through.
	o := p.begin()
	require.NoError(t, windows.PostQueuedCompletionStatus(p.h, 7, 0, &o.o))
	select {
	case r := <-o.done:
		assert.Equal(t, uint32(7), r.qty)
	case <-time.After(5 * time.Second):
		t.Fatal("completion not delivered")
	}
	assert.Empty(t, stray.done)
}

func TestStopJoinsReaper(t *testing.T) {
	p := newTestPort(t)
	require.NoError(t, p.stop())
	select {
	case <-p.exited:
	default:
		t.Fatal("reaper still running after stop")
	}
	assert.NoError(t, p.stop())
}
