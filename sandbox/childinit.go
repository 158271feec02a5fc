package sandbox

import (
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	serr "sandboxrun/errors"
	"sandboxrun/linux"
	"sandboxrun/logging"
)

// Fixed descriptor numbers the L2 process (the __sandbox-init re-exec) finds
// its ExtraFiles at. The orchestrator arranges cmd.ExtraFiles in this exact
// order before Start, so these are a private, in-process protocol rather
// than anything the CLI surface exposes.
const (
	childStatusFD = 3
	childStdinFD  = 4
	childStdoutFD = 5
	childStderrFD = 6
)

// childEnvVar carries the JSON-encoded Config across the re-exec boundary.
const childEnvVar = "SANDBOXRUN_CHILD_CONFIG"

// selfExe is the re-exec target used to reach this same binary from inside a
// chroot. It is a magic procfs symlink the kernel resolves to the running
// executable's host inode regardless of the caller's mount or chroot view —
// as long as /proc is mounted somewhere visible, which MountProc guarantees
// (step 3, ahead of the chroot in runChildPipeline) — so it keeps working
// after ChrootInto where an os.Executable()-resolved host path would not.
const selfExe = "/proc/self/exe"

// RunChildInit is the entry point for the "__sandbox-init" subcommand: it is
// L2, the cloned namespace-init process. It runs the namespace/filesystem
// setup steps of the in-child security pipeline (spec §4.5 steps 1-6)
// against itself, then re-execs itself as "__target-init" (L3) with a
// credential that drops privilege at the kernel fork+exec boundary rather
// than inside its own already-running Go runtime. L2 never applies rlimits,
// seccomp or a uid/gid drop to itself — it must survive L3 to reap it and
// report rusage, so confining L2 would confine the measurer instead of the
// measured (see DESIGN.md). It never returns — it always calls os.Exit once
// a RunnerStatus has been written back.
func RunChildInit() {
	statusW := os.NewFile(childStatusFD, "status")
	status := runChildPipeline()
	if err := WriteStatus(statusW, status); err != nil {
		logging.Error("child init: failed to report status", "err", err)
	}
	statusW.Close()
	os.Exit(0)
}

func runChildPipeline() *RunnerStatus {
	log := logging.Default().With("op", "child-init")

	cfg, err := decodeChildConfig()
	if err != nil {
		return abortChild(log, err, "decode-child-config")
	}

	if err := linux.ChmodWorkdir(cfg.Workdir); err != nil {
		return abortChild(log, err, "chmod-workdir")
	}
	if err := linux.MakeRootPrivate(); err != nil {
		return abortChild(log, err, "make-root-private")
	}
	if err := linux.MountProc(cfg.Rootfs); err != nil {
		return abortChild(log, err, "mount-proc")
	}
	if err := linux.BindWorkdir(cfg.Workdir, cfg.Rootfs); err != nil {
		return abortChild(log, err, "bind-workdir")
	}
	if err := linux.ChrootInto(cfg.Rootfs); err != nil {
		return abortChild(log, err, "chroot")
	}
	if err := linux.SetHostname("newbie-sandbox"); err != nil {
		return abortChild(log, err, "sethostname")
	}
	if err := linux.SetDomainname("newbie-sandbox"); err != nil {
		return abortChild(log, err, "setdomainname")
	}

	targetCfg := &TargetConfig{
		Command:           cfg.Command,
		TimeLimitMs:       cfg.TimeLimitMs,
		MemoryLimitKib:    cfg.MemoryLimitKib,
		FileSizeLimitBits: cfg.FileSizeLimitBits,
	}
	encoded, err := json.Marshal(targetCfg)
	if err != nil {
		return abortChild(log, err, "encode-target-config")
	}

	stdin := os.NewFile(childStdinFD, "stdin")
	stdout := os.NewFile(childStdoutFD, "stdout")
	stderr := os.NewFile(childStderrFD, "stderr")

	// L3 is spawned with a Credential rather than a self-applied
	// setuid/setgid: os/exec's fork+exec glue sets the grandchild's
	// credentials at the kernel level before execve, i.e. before L3's own
	// Go runtime (and the extra OS threads it immediately starts) exists.
	// Calling unix.Setuid from inside an already-running multi-threaded Go
	// process only changes the calling thread's credentials on Linux, not
	// the whole process, which is why that path is unsafe here.
	cmd := exec.Command(selfExe, "__target-init")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid: uint32(linux.NobodyUID),
			Gid: uint32(linux.NobodyGID),
		},
	}
	cmd.Env = []string{targetEnvVar + "=" + string(encoded)}
	cmd.ExtraFiles = []*os.File{stdin, stdout, stderr}

	if err := cmd.Start(); err != nil {
		return abortChild(log, err, "start-target-init")
	}

	waitErr := cmd.Wait()
	status, convErr := StatusFromProcessState(cmd.ProcessState)
	if convErr != nil {
		log.Warn("target-init wait returned an error alongside its exit status", "err", waitErr)
		return abortChild(log, convErr, "decode-target-wait-status")
	}
	return status
}

// abortChild logs a pipeline failure as ErrChildAbort and returns the
// failure RunnerStatus every pipeline step reports on error: ExitCode 1,
// every other field zero.
func abortChild(log *slog.Logger, cause error, op string) *RunnerStatus {
	wrapped := serr.Wrap(cause, serr.ErrChildAbort.Kind, op)
	log.Error("child init: security pipeline step failed", "op", op, "err", wrapped)
	return &RunnerStatus{ExitCode: 1}
}

func decodeChildConfig() (*Config, error) {
	raw := os.Getenv(childEnvVar)
	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
