// Package pool
// Author: momentics <momentics@gmail.com>
//
// Buffer recycling for hioload-sock server loops. Receive buffers are taken
// per datagram or per connection and returned when the handler finishes.
package pool
