package linux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChmodWorkdirMakesWorldWritable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0700))

	require.NoError(t, ChmodWorkdir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0777), info.Mode().Perm())
}

func TestChmodWorkdirMissingDirErrors(t *testing.T) {
	err := ChmodWorkdir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestMountProcRequiresPrivilege(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("requires a non-root process to observe the permission failure")
	}
	err := MountProc(t.TempDir())
	require.Error(t, err)
}

func TestChrootIntoRequiresPrivilege(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("requires a non-root process to observe the permission failure")
	}
	err := ChrootInto(t.TempDir())
	require.Error(t, err)
}
