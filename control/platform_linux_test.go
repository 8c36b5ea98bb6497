//go:build linux

package control_test

import (
	"testing"

	"github.com/momentics/hioload-sock/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinuxProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	state := dp.DumpState()

	cpus, ok := state["platform.affinity"].([]int)
	require.True(t, ok, "affinity probe: %v", state["platform.affinity"])
	assert.NotEmpty(t, cpus)

	assert.NotNil(t, state["platform.io_uring"])
}
