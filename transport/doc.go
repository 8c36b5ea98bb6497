// Package transport
// Author: momentics <momentics@gmail.com>
//
// Blocking TCP streams, TCP listeners and UDP datagram sockets over the
// execution strategy compiled in for the target platform:
//   - direct syscalls on unix (default)
//   - io_uring on linux with -tags io_uring
//   - I/O completion ports on windows
//
// Entities are move-only owners of one native handle pair. Copying is
// flagged by go vet; Move transfers ownership and leaves the source empty.
// Every operation on an empty or closed entity fails with
// api.ErrCodeInvalidHandle. Calls on one entity must not overlap.
package transport
