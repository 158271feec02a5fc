package sandbox

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	serr "sandboxrun/errors"
)

func TestConfigValidateEmptyCommand(t *testing.T) {
	cfg := &Config{Rootfs: os.TempDir(), Workdir: os.TempDir()}
	require.Error(t, cfg.Validate())
}

func TestConfigValidateBadCgroupVersion(t *testing.T) {
	cfg := &Config{
		Command: []string{"/bin/true"}, Rootfs: os.TempDir(), Workdir: os.TempDir(),
		PidsLimit: 5, CgroupVersion: 3,
	}
	require.Error(t, cfg.Validate())
}

func TestConfigValidateZeroPidsLimitAllowsAnyCgroupVersion(t *testing.T) {
	cfg := &Config{
		Command: []string{"/bin/true"}, Rootfs: os.TempDir(), Workdir: os.TempDir(),
		PidsLimit: 0, CgroupVersion: 0,
	}
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateMissingRootfs(t *testing.T) {
	cfg := &Config{
		Command: []string{"/bin/true"}, Rootfs: "/does/not/exist", Workdir: os.TempDir(),
	}
	require.Error(t, cfg.Validate())
}

func TestConfigValidateNegativeFD(t *testing.T) {
	cfg := &Config{
		Command: []string{"/bin/true"}, Rootfs: os.TempDir(), Workdir: os.TempDir(),
		StdinFD: -1,
	}
	require.Error(t, cfg.Validate())
}

func TestConfigValidateMissingWorkdir(t *testing.T) {
	cfg := &Config{
		Command: []string{"/bin/true"}, Rootfs: os.TempDir(), Workdir: "/does/not/exist",
	}
	require.Error(t, cfg.Validate())
}

// TestConfigValidateSentinelsDistinguishRootfsFromWorkdir guards against
// validateDir reporting the wrong field: a bad rootfs must wrap
// ErrBadRootfs and a bad workdir ErrBadWorkdir, not the same sentinel for
// both (they share ErrConfigInvalid's Kind, so errors.Is alone can't tell
// them apart — unwrap one level and compare the sentinel itself).
func TestConfigValidateSentinelsDistinguishRootfsFromWorkdir(t *testing.T) {
	badRootfs := &Config{
		Command: []string{"/bin/true"}, Rootfs: "/does/not/exist", Workdir: os.TempDir(),
	}
	err := badRootfs.Validate()
	require.Error(t, err)
	require.Same(t, serr.ErrBadRootfs, errors.Unwrap(err))

	badWorkdir := &Config{
		Command: []string{"/bin/true"}, Rootfs: os.TempDir(), Workdir: "/does/not/exist",
	}
	err = badWorkdir.Validate()
	require.Error(t, err)
	require.Same(t, serr.ErrBadWorkdir, errors.Unwrap(err))
}
