//go:build unix && !linux

package direct

// SIGPIPE on non-standard descriptors is ignored by the Go runtime, so
// platforms without MSG_NOSIGNAL rely on that and get EPIPE instead.
const msgNoSignal = 0
