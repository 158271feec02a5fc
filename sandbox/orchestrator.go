package sandbox

import (
	"encoding/json"
	"os"
	"os/exec"
	"syscall"
	"time"

	serr "sandboxrun/errors"
	"sandboxrun/linux"
	"sandboxrun/logging"
)

// timerBufferSeconds is the wall-clock slack spec §4.6 step 6 adds on top of
// the CPU time cap: the timer thread is a hard backstop against sleep/IO-
// bound targets that consume little CPU but would otherwise block forever,
// not the primary enforcement mechanism (that's RLIMIT_CPU, inside the
// target).
const timerBufferSeconds = 2

// Run executes command under cfg's limits and returns the resulting
// RunnerStatus. It is the C6 sandbox orchestrator (spec §4.6): it creates
// the ephemeral cgroup, clones a namespace-isolated child (L2) running the
// "__sandbox-init" re-exec, arms the wall-clock backstop, waits for L2 to
// report its measured rusage, and tears down the cgroup unconditionally.
//
// Process-tree model (resolving spec §9's open question): this orchestrator
// keeps the original source's three-level pyramid rather than collapsing
// it. L1 (this function) clones L2, the namespace-init process running the
// "__sandbox-init" re-exec; L2 performs only the namespace/filesystem setup
// of spec §4.5 (steps 1-6) against itself, then re-execs itself again, via
// "/proc/self/exe", as L3 ("__target-init", see targetinit.go) with a
// Credential that drops it to the "nobody" uid/gid at the kernel fork+exec
// boundary. L3 applies the rlimits and the seccomp filter to itself and
// then syscall.Exec's directly into the target, becoming L4 across that
// call without an intervening fork. Rlimits and seccomp never bind L2: it
// must survive L3 to wait4 it and report rusage, so confining L2 would
// confine the measurer rather than the measured. See DESIGN.md.
func Run(cfg *Config) (*RunnerStatus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	self, err := os.Executable()
	if err != nil {
		return nil, serr.Wrap(err, serr.ErrIo, "resolve-self-executable")
	}

	stdinF, err := fileForFD(cfg.StdinFD, "stdin")
	if err != nil {
		return nil, err
	}
	stdoutF, err := fileForFD(cfg.StdoutFD, "stdout")
	if err != nil {
		return nil, err
	}
	stderrF, err := fileForFD(cfg.StderrFD, "stderr")
	if err != nil {
		return nil, err
	}
	resultF, err := fileForFD(cfg.ResultFD, "result")
	if err != nil {
		return nil, err
	}

	statusR, statusW, err := os.Pipe()
	if err != nil {
		return nil, serr.Wrap(err, serr.ErrIo, "create-status-pipe")
	}

	encodedCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, serr.Wrap(err, serr.ErrIo, "encode-child-config")
	}

	cmd := exec.Command(self, "__sandbox-init")
	cmd.SysProcAttr = linux.BuildSysProcAttr()
	cmd.Env = append(os.Environ(), childEnvVar+"="+string(encodedCfg))
	// ExtraFiles maps to fd 3,4,5,6 in the child — see the childStatusFD
	// etc. constants in childinit.go, which this order must match.
	cmd.ExtraFiles = []*os.File{statusW, stdinF, stdoutF, stderrF}

	if err := cmd.Start(); err != nil {
		statusR.Close()
		statusW.Close()
		return nil, serr.Wrap(err, serr.ErrIo, "clone-child")
	}
	// The parent's copy of the write end must be closed, or statusR.Read
	// below blocks forever waiting for an EOF that only arrives once every
	// write end — including ours — is closed.
	statusW.Close()

	cgroupHandle, cgErr := linux.NewCGroupHandle(cfg.CgroupVersion, cfg.PidsLimit, cmd.Process.Pid)
	if cgErr != nil {
		logging.Error("cgroup setup failed", "err", cgErr)
	}
	defer cgroupHandle.Close()

	timerDone := make(chan struct{})
	var timerStop chan struct{}
	if cfg.TimeLimitMs > 0 {
		timerStop = make(chan struct{})
		go runTimeoutTimer(cfg.TimeLimitMs, cmd.Process, timerStop, timerDone)
	} else {
		close(timerDone)
	}

	status, readErr := ReadStatus(statusR)
	statusR.Close()

	if timerStop != nil {
		close(timerStop)
		<-timerDone
	}

	waitErr := cmd.Wait()
	if readErr != nil {
		logging.Error("failed to read child status", "err", readErr, "waitErr", waitErr)
		return nil, serr.Wrap(readErr, serr.ErrIo, "read-child-status")
	}

	if err := WriteStatus(resultF, status); err != nil {
		logging.Error("failed to write result", "err", err)
	}

	return status, nil
}

// runTimeoutTimer is the sibling thread spec §4.6 step 6 describes: it
// sleeps the CPU-limit-plus-buffer deadline, then SIGKILLs the namespace
// init (which the kernel in turn tears down along with every process in its
// PID namespace, since killing PID 1 of a namespace kills the namespace).
// It is started only after Start returns, per spec §5's ordering guarantee
// that the timer cannot fire before the child it targets exists.
func runTimeoutTimer(timeLimitMs int64, proc *os.Process, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	deadline := time.Duration(timeLimitMs/1000+timerBufferSeconds) * time.Second
	select {
	case <-time.After(deadline):
		if err := proc.Signal(syscall.SIGKILL); err != nil {
			logging.Warn("timeout timer: kill failed (process likely already exited)", "err", err)
		}
	case <-stop:
	}
}

func fileForFD(fd int, name string) (*os.File, error) {
	if fd < 0 {
		return nil, serr.New(serr.ErrConfigInvalid, "resolve-fd", "negative file descriptor: "+name)
	}
	return os.NewFile(uintptr(fd), name), nil
}
