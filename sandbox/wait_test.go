package sandbox

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusFromProcessStateExitCode(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	err := cmd.Run()
	require.Error(t, err)

	status, convErr := StatusFromProcessState(cmd.ProcessState)
	require.NoError(t, convErr)
	require.Equal(t, 7, status.ExitCode)
	require.Equal(t, 0, status.Signal)
	require.GreaterOrEqual(t, status.MemoryUsedKib, int64(0))
}

func TestStatusFromProcessStateSuccess(t *testing.T) {
	cmd := exec.Command("/bin/true")
	require.NoError(t, cmd.Run())

	status, err := StatusFromProcessState(cmd.ProcessState)
	require.NoError(t, err)
	require.Equal(t, 0, status.ExitCode)
	require.Equal(t, 0, status.Signal)
}

func TestStatusFromProcessStateNil(t *testing.T) {
	_, err := StatusFromProcessState(nil)
	require.Error(t, err)
}
