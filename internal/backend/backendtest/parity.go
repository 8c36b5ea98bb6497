// File: internal/backend/backendtest/parity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package backendtest

import "github.com/momentics/hioload-sock/api"

// ExpectedScript is the outcome sequence every strategy must produce for Script.
var ExpectedScript = []api.ErrorCode{
	api.ErrCodeOK,                // listen 127.0.0.1:0
	api.ErrCodeAddressInUse,      // listen on the same port again
	api.ErrCodeInvalidArgument,   // listen on a malformed address
	api.ErrCodeOK,                // connect
	api.ErrCodeOK,                // accept
	api.ErrCodeOK,                // client write
	api.ErrCodeOK,                // server read
	api.ErrCodeOK,                // server read after client close (0 bytes)
	api.ErrCodeInvalidHandle,     // server read after server close
	api.ErrCodeInvalidHandle,     // accept after listener close
	api.ErrCodeConnectionRefused, // connect to the released port
	api.ErrCodeOK,                // bind datagram
	api.ErrCodeAddressInUse,      // bind datagram on the same port again
	api.ErrCodeInvalidArgument,   // sendto a malformed address
	api.ErrCodeOK,                // close everything twice
}

// Script drives b through a fixed sequence of operations with injected
// faults and records the taxonomy code of each step.
func Script[P comparable](b api.Backend[P]) []api.ErrorCode {
	var out []api.ErrorCode
	record := func(err error) { out = append(out, api.CodeOf(err)) }

	l, err := b.OpenListener(loopback, 0)
	record(err)
	addr, _ := b.LocalAddr(l)

	_, err = b.OpenListener(loopback, addr.Port)
	record(err)
	_, err = b.OpenListener("999.1.1.1", addr.Port)
	record(err)

	client, err := b.Connect(loopback, addr.Port)
	record(err)
	server, err := b.Accept(l)
	record(err)

	_, err = b.Write(client, []byte("ping"))
	record(err)
	buf := make([]byte, 16)
	_, err = b.Read(server, buf)
	record(err)

	b.Close(client)
	for {
		// Drain whatever part of "ping" the first read left behind.
		n, rerr := b.Read(server, buf)
		if rerr != nil || n == 0 {
			err = rerr
			break
		}
	}
	record(err)

	b.Close(server)
	_, err = b.Read(server, buf)
	record(err)

	b.Close(l)
	_, err = b.Accept(l)
	record(err)

	_, err = b.Connect(loopback, addr.Port)
	record(err)

	d, err := b.BindDatagram(loopback, 0)
	record(err)
	daddr, _ := b.LocalAddr(d)
	_, err = b.BindDatagram(loopback, daddr.Port)
	record(err)
	_, err = b.SendTo(d, []byte("x"), "not.an.ip", daddr.Port)
	record(err)

	var closeErr error
	for _, p := range []P{l, client, server, d, l, client, server, d} {
		if err := b.Close(p); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	record(closeErr)
	return out
}
