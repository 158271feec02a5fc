package linux

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	serr "sandboxrun/errors"
)

// Mount propagation and type flags used by the in-child security pipeline,
// sourced from golang.org/x/sys/unix rather than the syscall package.
const (
	MS_PRIVATE = unix.MS_PRIVATE
	MS_REC     = unix.MS_REC
	MS_BIND    = unix.MS_BIND
)

// MakeRootPrivate is step 2 of the in-child pipeline: mount --make-rprivate
// / so none of the mount changes below propagate back to the host mount
// namespace (they already wouldn't cross the namespace boundary, but a
// shared/slave propagation type on the inherited root would otherwise leak
// unmount events back outward).
func MakeRootPrivate() error {
	if err := unix.Mount("", "/", "", MS_PRIVATE|MS_REC, ""); err != nil {
		return serr.Wrap(err, serr.ErrIo, "make-root-private")
	}
	return nil
}

// MountProc mounts procfs at <rootfs>/proc (step 3).
func MountProc(rootfs string) error {
	target := filepath.Join(rootfs, "proc")
	if err := os.MkdirAll(target, 0755); err != nil {
		return serr.Wrap(err, serr.ErrIo, "mkdir-proc")
	}
	if err := unix.Mount("proc", target, "proc", 0, ""); err != nil {
		return serr.Wrap(err, serr.ErrIo, "mount-proc")
	}
	return nil
}

// BindWorkdir bind-mounts workdir at <rootfs>/tmp (step 4).
func BindWorkdir(workdir, rootfs string) error {
	target := filepath.Join(rootfs, "tmp")
	if err := os.MkdirAll(target, 0755); err != nil {
		return serr.Wrap(err, serr.ErrIo, "mkdir-tmp")
	}
	if err := unix.Mount(workdir, target, "none", MS_BIND|MS_PRIVATE, ""); err != nil {
		return serr.Wrap(err, serr.ErrIo, "bind-workdir")
	}
	return nil
}

// ChrootInto is step 5: chdir into rootfs, chroot to it, then chdir to the
// newly-rooted /tmp (the bind-mounted workdir). Unlike the teacher's
// pivot_root-based SetupRootfs (used for a full OCI bundle with an old-root
// cleanup step), this sandbox has no old-root to unmount — spec §4.5 calls
// for a plain chroot, which is also simpler to get right inside a freshly
// cloned, soon-to-be-unprivileged child.
func ChrootInto(rootfs string) error {
	if err := os.Chdir(rootfs); err != nil {
		return serr.Wrap(err, serr.ErrIo, "chdir-rootfs")
	}
	if err := unix.Chroot("."); err != nil {
		return serr.Wrap(err, serr.ErrIo, "chroot")
	}
	if err := os.Chdir("/tmp"); err != nil {
		return serr.Wrap(err, serr.ErrIo, "chdir-tmp")
	}
	return nil
}

// ChmodWorkdir is step 1: make workdir world-writable so the process can
// still use it after dropping to uid/gid 65534 (nobody).
func ChmodWorkdir(workdir string) error {
	if err := os.Chmod(workdir, 0777); err != nil {
		return serr.Wrap(err, serr.ErrIo, "chmod-workdir")
	}
	return nil
}
