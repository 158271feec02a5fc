package sandbox

import (
	"os"
	"syscall"

	serr "sandboxrun/errors"
)

// StatusFromProcessState implements the C2 rusage/wait helper (spec §4.2)
// against an *os.ProcessState returned by (os/exec).Cmd.Wait: it decodes the
// wait status and converts the reported rusage into a RunnerStatus.
//
// Using os/exec rather than a raw wait4(2) is the Go-idiomatic equivalent —
// Cmd.Wait blocks on the pid and Cmd.ProcessState carries exactly the
// WaitStatus/Rusage pair spec §4.2 decodes by hand in C. childinit.go calls
// this on L2's Wait of L3 (the "__target-init" re-exec that applies rlimits
// and seccomp to itself before syscall.Exec'ing into the target): rusage is
// attributed to L3/the target, never to L2 itself, which is exactly the
// separation the extra process level in spec §4.6's pyramid exists for.
func StatusFromProcessState(ps *os.ProcessState) (*RunnerStatus, error) {
	if ps == nil {
		return nil, serr.ErrReapFailed
	}
	wstatus, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return nil, serr.Wrap(nil, serr.ErrIo, "decode-wait-status")
	}
	status := &RunnerStatus{Status: int(wstatus)}

	if ru, ok := ps.SysUsage().(*syscall.Rusage); ok && ru != nil {
		status.TimeUsedMs = rusageMs(ru.Utime) + rusageMs(ru.Stime)
		status.MemoryUsedKib = ru.Maxrss
	}

	switch {
	case wstatus.Exited():
		status.ExitCode = wstatus.ExitStatus()
		status.Signal = 0
	case wstatus.Signaled():
		status.Signal = int(wstatus.Signal())
		status.ExitCode = 0
	case wstatus.Stopped():
		status.Signal = int(wstatus.StopSignal())
	}
	return status, nil
}

func rusageMs(tv syscall.Timeval) int64 {
	return tv.Sec*1000 + tv.Usec/1000
}
