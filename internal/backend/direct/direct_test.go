//go:build unix

package direct_test

import (
	"testing"

	"github.com/momentics/hioload-sock/internal/backend/backendtest"
	"github.com/momentics/hioload-sock/internal/backend/direct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectContract(t *testing.T) {
	backendtest.Run[*direct.Pair](t, direct.Engine{})
}

func TestCloseReleasesDescriptor(t *testing.T) {
	var e direct.Engine
	p, err := e.OpenDatagram()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.FD(), 0)

	require.NoError(t, e.Close(p))
	assert.Equal(t, -1, p.FD())

	var nilPair *direct.Pair
	assert.Equal(t, -1, nilPair.FD())
}
