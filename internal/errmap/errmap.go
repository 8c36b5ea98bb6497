// File: internal/errmap/errmap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Translation of native error signals into the portable taxonomy. Every
// backend funnels its failures through Map so that the same logical
// condition yields the same code on every platform.

package errmap

import (
	"errors"

	"github.com/momentics/hioload-sock/api"
)

// Map converts err into an *api.Error labelled with op. Errors that already
// belong to the taxonomy pass through unchanged.
func Map(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *api.Error
	if errors.As(err, &e) {
		return err
	}
	code, native, ok := classify(err)
	if !ok {
		return api.WrapNative(op, api.ErrCodeIO, 0, err)
	}
	return api.WrapNative(op, code, native, err)
}
