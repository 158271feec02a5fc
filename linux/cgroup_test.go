package linux

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCGroupHandleZeroLimitSkipsV1Creation(t *testing.T) {
	h, err := NewCGroupHandle(1, 0, os.Getpid())
	require.NoError(t, err)
	require.NotNil(t, h)
	h.Close()
}

func TestNewCGroupHandleUnknownVersionWithLimitErrors(t *testing.T) {
	_, err := NewCGroupHandle(3, 10, os.Getpid())
	require.Error(t, err)
}

func TestNewCGroupHandleUnknownVersionNoLimitOK(t *testing.T) {
	h, err := NewCGroupHandle(0, 0, os.Getpid())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(h.Name(), "sandbox-"))
}

func TestCGroupHandleNameNilSafe(t *testing.T) {
	var h *CGroupHandle
	require.Equal(t, "", h.Name())
	h.Close()
}
