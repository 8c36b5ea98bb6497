package unsupported_test

import (
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/internal/backend/unsupported"
	"github.com/stretchr/testify/assert"
)

func TestConstructorsRefuse(t *testing.T) {
	var e unsupported.Engine
	_, err := e.OpenListener("127.0.0.1", 0)
	assert.ErrorIs(t, err, api.ErrPlatformUnsupported)
	_, err = e.Connect("127.0.0.1", 80)
	assert.ErrorIs(t, err, api.ErrPlatformUnsupported)
	_, err = e.OpenDatagram()
	assert.ErrorIs(t, err, api.ErrPlatformUnsupported)
	_, err = e.BindDatagram("127.0.0.1", 0)
	assert.ErrorIs(t, err, api.ErrPlatformUnsupported)
}

func TestEmptyPairOperations(t *testing.T) {
	var e unsupported.Engine
	_, err := e.Read(nil, make([]byte, 4))
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	_, _, err = e.RecvFrom(nil, make([]byte, 4))
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	assert.ErrorIs(t, e.ShutdownWrite(nil), api.ErrInvalidHandle)
	assert.NoError(t, e.Close(nil))
}
