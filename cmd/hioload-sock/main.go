// hioload-sock runs the example clients and servers of the transport layer.
//
// Usage:
//
//	hioload-sock tcp-server --port 9090 [--echo]
//	hioload-sock tcp-client --port 9090 --message hi
//	hioload-sock udp-demo
//	hioload-sock backend
package main

import (
	"fmt"
	"os"

	"github.com/momentics/hioload-sock/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
