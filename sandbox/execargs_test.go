package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildExecArgsFixedEnv(t *testing.T) {
	args, err := BuildExecArgs([]string{"/bin/echo", "Hello", "World"})
	require.NoError(t, err)
	require.Equal(t, "/bin/echo", args.Path)
	require.Equal(t, []string{"/bin/echo", "Hello", "World"}, args.Argv)
	require.Len(t, args.Envp, 3)
	require.Contains(t, args.Envp[1], "HOME=/tmp")
	require.Contains(t, args.Envp[2], "TERM=xterm")
}

func TestBuildExecArgsEmptyCommand(t *testing.T) {
	_, err := BuildExecArgs(nil)
	require.Error(t, err)
}

func TestBuildExecArgsEmbeddedNUL(t *testing.T) {
	_, err := BuildExecArgs([]string{"/bin/echo", "bad\x00arg"})
	require.Error(t, err)
}

func TestBuildExecArgsRoundTripDeterministic(t *testing.T) {
	cmd := []string{"/bin/sh", "-c", "echo hi"}
	a1, err := BuildExecArgs(cmd)
	require.NoError(t, err)
	a2, err := BuildExecArgs(cmd)
	require.NoError(t, err)
	require.Equal(t, a1.Argv, a2.Argv)
	require.Equal(t, a1.Envp, a2.Envp)
}
