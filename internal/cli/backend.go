// File: internal/cli/backend.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cli

import (
	"fmt"

	"github.com/momentics/hioload-sock/control"
	"github.com/momentics/hioload-sock/transport"
	"github.com/spf13/cobra"
)

func (a *app) backendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Print the compiled-in backend and platform probes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dp := control.NewDebugProbes()
			control.RegisterPlatformProbes(dp)
			dp.RegisterProbe("transport.backend", func() any { return transport.BackendName() })

			state := dp.DumpState()
			out := cmd.OutOrStdout()
			for _, name := range dp.Names() {
				fmt.Fprintf(out, "%s: %v\n", name, state[name])
			}
			return nil
		},
	}
}
