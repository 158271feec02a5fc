// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Config validation errors.
var (
	// ErrEmptyCommand indicates SandboxConfig.Command was empty.
	ErrEmptyCommand = &SandboxError{
		Kind:   ErrConfigInvalid,
		Detail: "command must not be empty",
	}

	// ErrBadCgroupVersion indicates cgroup_version was neither 1 nor 2 while a pids limit was set.
	ErrBadCgroupVersion = &SandboxError{
		Kind:   ErrConfigInvalid,
		Detail: "cgroup_version must be 1 or 2 when pids_limit is set",
	}

	// ErrBadRootfs indicates the rootfs path does not exist or is not a directory.
	ErrBadRootfs = &SandboxError{
		Kind:   ErrConfigInvalid,
		Detail: "rootfs must be an existing absolute directory",
	}

	// ErrBadWorkdir indicates the workdir path does not exist or is not a directory.
	ErrBadWorkdir = &SandboxError{
		Kind:   ErrConfigInvalid,
		Detail: "workdir must be an existing absolute directory",
	}
)

// Seccomp compiler errors.
var (
	// ErrEmptyRulesVector indicates a syscall was mapped to an empty rule chain.
	ErrEmptyRulesVector = &SandboxError{
		Kind:   ErrSeccompEmptyRules,
		Detail: "syscall rule chain must not be empty",
	}

	// ErrInvalidArgumentNumber indicates a condition referenced argument index > 5.
	ErrInvalidArgumentNumber = &SandboxError{
		Kind:   ErrSeccompInvalidArg,
		Detail: "argument index must be 0..5",
	}

	// ErrFilterTooLarge indicates the compiled BPF program reached 4096 or more instructions.
	ErrFilterTooLarge = &SandboxError{
		Kind:   ErrSeccompTooLarge,
		Detail: "compiled program has 4096 or more instructions",
	}

	// ErrUnsupportedArch indicates the build/runtime architecture is not x86_64 or aarch64.
	ErrUnsupportedArch = &SandboxError{
		Kind:   ErrSeccompIntoBpf,
		Detail: "unsupported architecture for seccomp compilation",
	}
)

// Process/IO errors.
var (
	// ErrChildAbort indicates a step of the in-child security/namespace
	// pipeline (L2 or L3) failed before the target could be exec'd.
	ErrChildAbort = &SandboxError{
		Kind:   ErrIo,
		Detail: "in-child security pipeline failed",
	}

	// ErrReapFailed indicates wait4 on the measured pid failed.
	ErrReapFailed = &SandboxError{
		Kind:   ErrIo,
		Detail: "failed to reap pid",
	}
)

// CGroup errors.
var (
	// ErrCgroupSetup indicates cgroup directory creation or pid enrollment failed.
	ErrCgroupSetup = &SandboxError{
		Kind:   ErrIo,
		Detail: "failed to set up cgroup",
	}

	// ErrCgroupTeardown indicates cgroup teardown failed (logged, never propagated).
	ErrCgroupTeardown = &SandboxError{
		Kind:   ErrIo,
		Detail: "failed to tear down cgroup",
	}
)
