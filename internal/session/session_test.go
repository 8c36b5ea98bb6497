package session_test

import (
	"context"
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenGetClose(t *testing.T) {
	st := session.NewStore(3)
	local := api.PeerAddr{Address: "127.0.0.1", Port: 8080}
	s := st.Open(context.Background(), local)

	got, ok := st.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, local, got.Local())
	assert.False(t, got.Started().IsZero())
	assert.Equal(t, 1, st.Len())

	st.Close(s.ID())
	_, ok = st.Get(s.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, st.Len())
	select {
	case <-s.Done():
	default:
		t.Fatal("closed session not cancelled")
	}

	st.Close(s.ID())
	st.Close("unknown")
}

func TestParentCancellation(t *testing.T) {
	st := session.NewStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	a := st.Open(ctx, api.PeerAddr{})
	b := st.Open(ctx, api.PeerAddr{})
	assert.NotEqual(t, a.ID(), b.ID())

	cancel()
	<-a.Done()
	<-b.Context().Done()
	assert.Equal(t, 2, st.Len(), "cancellation does not unregister")
}

func TestRangeVisitsEverySession(t *testing.T) {
	st := session.NewStore(4)
	want := map[string]bool{}
	for i := 0; i < 50; i++ {
		want[st.Open(context.Background(), api.PeerAddr{}).ID()] = true
	}
	seen := map[string]bool{}
	st.Range(func(s *session.Session) { seen[s.ID()] = true })
	assert.Equal(t, want, seen)
}
