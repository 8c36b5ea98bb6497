//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific probes: CPU count, scheduler affinity and io_uring
// availability.

package control

import (
	"runtime"
	"unsafe"

	"github.com/momentics/hioload-sock/internal/backend/uring"
	"golang.org/x/sys/unix"
)

// RegisterPlatformProbes sets Linux-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.affinity", func() any {
		var set unix.CPUSet
		if err := unix.SchedGetaffinity(0, &set); err != nil {
			return err.Error()
		}
		cpus := make([]int, 0, set.Count())
		for i := 0; i < len(set)*int(unsafe.Sizeof(set[0]))*8 && len(cpus) < set.Count(); i++ {
			if set.IsSet(i) {
				cpus = append(cpus, i)
			}
		}
		return cpus
	})
	dp.RegisterProbe("platform.io_uring", func() any {
		if err := uring.Probe(); err != nil {
			return err.Error()
		}
		return "available"
	})
}
