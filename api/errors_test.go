package api_test

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := api.WrapNative("bind", api.ErrCodeAddressInUse, 98, syscall.Errno(98))

	assert.ErrorIs(t, err, api.ErrAddressInUse)
	assert.NotErrorIs(t, err, api.ErrConnectionRefused)
	assert.ErrorIs(t, err, &api.Error{Code: api.ErrCodeAddressInUse, Op: "bind"})
	assert.NotErrorIs(t, err, &api.Error{Code: api.ErrCodeAddressInUse, Op: "connect"})
}

func TestErrorUnwrapsNative(t *testing.T) {
	err := api.WrapNative("connect", api.ErrCodeConnectionRefused, 111, syscall.Errno(111))
	wrapped := fmt.Errorf("dial: %w", err)

	assert.ErrorIs(t, wrapped, syscall.Errno(111))
	assert.Equal(t, api.ErrCodeConnectionRefused, api.CodeOf(wrapped))

	var e *api.Error
	require.ErrorAs(t, wrapped, &e)
	assert.Equal(t, 111, e.Native)
	assert.Equal(t, "connect", e.Op)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, api.ErrCodeOK, api.CodeOf(nil))
	assert.Equal(t, api.ErrCodeIO, api.CodeOf(errors.New("foreign")))
	assert.Equal(t, api.ErrCodeInvalidHandle, api.CodeOf(api.NewError("read", api.ErrCodeInvalidHandle)))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "read: invalid handle", api.NewError("read", api.ErrCodeInvalidHandle).Error())
	assert.Equal(t, "resource exhausted", api.ErrResourceExhausted.Error())
	assert.Contains(t, api.WrapNative("bind", api.ErrCodeAddressInUse, 98, syscall.Errno(98)).Error(), "native 98")
}

func TestStateAndPeerAddrStrings(t *testing.T) {
	assert.Equal(t, "empty", api.StateEmpty.String())
	assert.Equal(t, "listening", api.StateListening.String())
	assert.Equal(t, "127.0.0.1:9090", api.PeerAddr{Address: "127.0.0.1", Port: 9090}.String())
}
