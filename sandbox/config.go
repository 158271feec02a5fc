// Package sandbox is the orchestration engine: it builds a namespace-isolated
// child with a correct process-tree shape, drives the rlimit/chroot/uid/seccomp
// security pipeline, manages the ephemeral cgroup, and reports accounting for
// a single run of an untrusted command.
package sandbox

import (
	"os"
	"path/filepath"

	serr "sandboxrun/errors"
)

// Config is the input to a single sandboxed run (spec §3 SandboxConfig).
type Config struct {
	// Command is the argv of the target; Command[0] is the executable path
	// inside the rootfs.
	Command []string

	// Rootfs is the absolute host path to a pre-populated filesystem tree.
	Rootfs string

	// Workdir is bind-mounted at /tmp inside the sandbox.
	Workdir string

	StdinFD  int
	StdoutFD int
	StderrFD int
	ResultFD int

	// TimeLimitMs is the CPU time cap in milliseconds. 0 means unlimited.
	TimeLimitMs int64
	// MemoryLimitKib is the address-space cap. 0 means unlimited.
	MemoryLimitKib int64
	// FileSizeLimitBits is the file-size write cap. 0 means unlimited.
	FileSizeLimitBits int64
	// PidsLimit caps processes in the cgroup. 0 means unlimited.
	PidsLimit int64
	// CgroupVersion must be 1 or 2 when PidsLimit != 0.
	CgroupVersion int
}

// Validate enforces spec §3's invariants: Command non-empty; descriptors
// valid or conventional; cgroup_version sane when a pids limit is set;
// rootfs/workdir are existing absolute directories.
func (c *Config) Validate() error {
	if len(c.Command) == 0 {
		return serr.ErrEmptyCommand
	}
	if c.PidsLimit != 0 && c.CgroupVersion != 1 && c.CgroupVersion != 2 {
		return serr.ErrBadCgroupVersion
	}
	for _, fd := range []int{c.StdinFD, c.StdoutFD, c.StderrFD, c.ResultFD} {
		if fd < 0 {
			return serr.New(serr.ErrConfigInvalid, "validate", "file descriptors must be non-negative")
		}
	}
	if err := validateDir(c.Rootfs, serr.ErrBadRootfs); err != nil {
		return serr.WrapWithDetail(err, serr.ErrConfigInvalid, "validate", "rootfs must be an existing absolute directory")
	}
	if err := validateDir(c.Workdir, serr.ErrBadWorkdir); err != nil {
		return serr.WrapWithDetail(err, serr.ErrConfigInvalid, "validate", "workdir must be an existing absolute directory")
	}
	return nil
}

// validateDir checks that path is an existing absolute directory, returning
// badErr (ErrBadRootfs or ErrBadWorkdir, depending on which field is being
// validated) if it is not.
func validateDir(path string, badErr error) error {
	if !filepath.IsAbs(path) {
		return badErr
	}
	fi, err := os.Stat(path)
	if err != nil {
		return badErr
	}
	if !fi.IsDir() {
		return badErr
	}
	return nil
}

// RunnerStatus is the result of a completed run (spec §3 RunnerStatus).
type RunnerStatus struct {
	TimeUsedMs    int64
	MemoryUsedKib int64
	ExitCode      int
	Signal        int
	Status        int
}
