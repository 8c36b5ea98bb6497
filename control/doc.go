// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, metrics, logging and debug introspection for hioload-sock
// programs and collaborators.
//
// Provides:
//   - Config loading from flags, HIOLOAD_SOCK_* environment and files (viper)
//   - Struct validation with transport-aware rules (validator)
//   - Prometheus collectors fed by the transport entities
//   - Reload hooks driven by config file changes
//   - Named debug probes describing the platform and compiled-in backend
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
