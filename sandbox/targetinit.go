package sandbox

import (
	"encoding/json"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	serr "sandboxrun/errors"
	"sandboxrun/linux"
	"sandboxrun/logging"
)

// Fixed descriptor numbers the L3 process (the __target-init re-exec) finds
// its ExtraFiles at. childinit.go's cmd.ExtraFiles order must match.
const (
	targetStdinFD  = 3
	targetStdoutFD = 4
	targetStderrFD = 5
)

// targetEnvVar carries the JSON-encoded TargetConfig across the L2->L3
// re-exec boundary. It is deliberately a separate, narrower payload than
// childEnvVar's full Config: L3 only needs the pieces of spec §4.5 that bind
// the target itself (argv and the three rlimits), not the namespace/
// filesystem setup L2 already finished before spawning it.
const targetEnvVar = "SANDBOXRUN_TARGET_CONFIG"

// TargetConfig is the subset of Config the forked target process needs.
type TargetConfig struct {
	Command           []string
	TimeLimitMs       int64
	MemoryLimitKib    int64
	FileSizeLimitBits int64
}

// RunTargetInit is the entry point for the "__target-init" subcommand: it is
// L3, re-exec'd by L2 with a Credential that already dropped it to the
// "nobody" uid/gid at the kernel fork+exec boundary (spec §4.5 step 7).
// Running here, as its own freshly exec'd process rather than inline inside
// L2, is what lets rlimits (spec §4.5 step 9) and the seccomp filter (step
// 8) bind only the process about to become the target: L3 applies both to
// itself and then immediately syscall.Exec's into the target, so neither
// cap is ever active against the namespace-init process L2 that must
// survive to reap it. It never returns on success — syscall.Exec replaces
// this process image outright — and calls os.Exit(1) on any setup failure.
func RunTargetInit() {
	log := logging.Default().With("op", "target-init")

	cfg, err := decodeTargetConfig()
	if err != nil {
		log.Error("target init: bad config", "err", err)
		os.Exit(1)
	}

	filter, err := linux.BuildDenyListFilter()
	if err != nil {
		log.Error("build seccomp filter failed", "err", err)
		os.Exit(1)
	}
	prog, err := linux.CompileFilter(filter)
	if err != nil {
		log.Error("compile seccomp filter failed", "err", err)
		os.Exit(1)
	}

	if err := linux.ApplyRlimits(cfg.TimeLimitMs, cfg.MemoryLimitKib, cfg.FileSizeLimitBits); err != nil {
		log.Error("apply rlimits failed", "err", err)
		os.Exit(1)
	}

	stdin := os.NewFile(targetStdinFD, "stdin")
	stdout := os.NewFile(targetStdoutFD, "stdout")
	stderr := os.NewFile(targetStderrFD, "stderr")
	if err := dup3File(stdin, 0); err != nil {
		log.Error("dup3 stdin failed", "err", err)
		os.Exit(1)
	}
	if err := dup3File(stdout, 1); err != nil {
		log.Error("dup3 stdout failed", "err", err)
		os.Exit(1)
	}
	if err := dup3File(stderr, 2); err != nil {
		log.Error("dup3 stderr failed", "err", err)
		os.Exit(1)
	}

	args, err := BuildExecArgs(cfg.Command)
	if err != nil {
		log.Error("build execargs failed", "err", err)
		os.Exit(1)
	}

	// Seccomp is installed last, immediately before the execve.
	if err := linux.InstallFilter(prog); err != nil {
		log.Error("install seccomp filter failed", "err", err)
		os.Exit(1)
	}

	if err := syscall.Exec(args.Path, args.Argv, args.Envp); err != nil {
		log.Error("target exec failed", "err", err, "path", args.Path)
		os.Exit(1)
	}
}

func decodeTargetConfig() (*TargetConfig, error) {
	raw := os.Getenv(targetEnvVar)
	var cfg TargetConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, serr.Wrap(err, serr.ErrConfigInvalid, "decode-target-config")
	}
	return &cfg, nil
}

// dup3File duplicates f onto the fixed descriptor newFD; f's own descriptor
// is left open (the ExtraFiles fd it arrived on is simply unused from this
// point on, same as dup2 would leave it). unix.Dup3 is used instead of the
// standard syscall package's Dup2 because SYS_dup2 does not exist on
// linux/arm64 (the generic syscall ABI only kept dup3); unix.Dup3 is
// implemented on every architecture this tree supports, including arm64,
// via golang.org/x/sys.
func dup3File(f *os.File, newFD int) error {
	return unix.Dup3(int(f.Fd()), newFD, 0)
}
