package linux

import (
	"golang.org/x/sys/unix"

	serr "sandboxrun/errors"
)

// MemoryLimitMultiplier is the fudge factor spec §4.5 step 9 applies to
// memory_limit_kib before it becomes RLIMIT_AS: address-space usage always
// runs ahead of resident memory (mapped-but-untouched pages, the runtime's
// own allocator overhead), so the cap is doubled to avoid killing a target
// that hasn't actually exceeded its intended RSS budget yet.
const MemoryLimitMultiplier = 2

// CPURlimitSeconds converts a millisecond CPU cap into the RLIMIT_CPU value
// per spec §4.5 step 9: one second of slack, plus one more if the
// sub-second remainder rounds up past 800ms.
func CPURlimitSeconds(timeLimitMs int64) uint64 {
	secs := timeLimitMs/1000 + 1
	if timeLimitMs%1000 > 800 {
		secs++
	}
	return uint64(secs)
}

// ApplyRlimits installs RLIMIT_CPU, RLIMIT_AS and RLIMIT_FSIZE on the
// calling process ahead of execve. A zero limit value means "not set" (spec
// §3: absent ⇒ no cap) and is skipped entirely rather than set to zero,
// which would instead forbid the resource outright.
func ApplyRlimits(timeLimitMs, memoryLimitKib, fileSizeLimitBits int64) error {
	if timeLimitMs > 0 {
		secs := CPURlimitSeconds(timeLimitMs)
		lim := &unix.Rlimit{Cur: secs, Max: secs}
		if err := unix.Setrlimit(unix.RLIMIT_CPU, lim); err != nil {
			return serr.Wrap(err, serr.ErrIo, "setrlimit-cpu")
		}
	}
	if memoryLimitKib > 0 {
		bytes := uint64(memoryLimitKib) * MemoryLimitMultiplier * 1024
		lim := &unix.Rlimit{Cur: bytes, Max: bytes}
		if err := unix.Setrlimit(unix.RLIMIT_AS, lim); err != nil {
			return serr.Wrap(err, serr.ErrIo, "setrlimit-as")
		}
	}
	if fileSizeLimitBits > 0 {
		lim := &unix.Rlimit{Cur: uint64(fileSizeLimitBits), Max: uint64(fileSizeLimitBits)}
		if err := unix.Setrlimit(unix.RLIMIT_FSIZE, lim); err != nil {
			return serr.Wrap(err, serr.ErrIo, "setrlimit-fsize")
		}
	}
	return nil
}

// DropPrivileges performs step 7 by calling setgid then setuid directly on
// the calling process — group before user, since setuid would otherwise
// drop the capability setgid needs. On Linux these are per-OS-thread
// credentials, not per-process, so calling this from an already-running
// multi-threaded Go program only drops the calling goroutine's current
// thread and leaves every other thread (and any new one the runtime spins
// up afterward) still privileged. The sandbox pipeline does not call this
// for that reason: the target's privilege drop is instead carried out via
// os/exec's SysProcAttr.Credential, which the kernel applies at fork+exec
// time before the target's own Go runtime starts (see childinit.go). This
// function remains for any caller that execve's immediately afterward,
// where the single-thread guarantee still holds.
func DropPrivileges(uid, gid int) error {
	if err := unix.Setgid(gid); err != nil {
		return serr.Wrap(err, serr.ErrIo, "setgid")
	}
	if err := unix.Setuid(uid); err != nil {
		return serr.Wrap(err, serr.ErrIo, "setuid")
	}
	return nil
}

// NobodyUID and NobodyGID are the fixed "nobody" ids the sandbox drops
// privileges to (spec §4.5 step 7).
const (
	NobodyUID = 65534
	NobodyGID = 65534
)
