package linux

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/containerd/cgroups/v3/cgroup1"
	"github.com/containerd/cgroups/v3/cgroup2"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	serr "sandboxrun/errors"
	"sandboxrun/logging"
)

const cgroupRootV2 = "/sys/fs/cgroup"

// CGroupHandle owns an ephemeral cgroup directory created for a single
// sandbox run, enrolling the host pid (and, transitively via clone/fork,
// every descendant of it) and capping the process count. Per spec §4.4 the
// v1 pids-controller group is only created when a limit was requested (a v1
// pids group is pointless without one); the v2 group is always created so
// namespace/ancestor cgroup migration takes place regardless.
type CGroupHandle struct {
	version   int
	name      string
	pidsLimit int64

	v1 cgroup1.Cgroup
	v2 *cgroup2.Manager
}

// NewCGroupHandle creates the ephemeral cgroup for pid and returns a handle
// whose Close tears it down. version must be 1 or 2 when pidsLimit > 0 (spec
// §3 invariant); a pidsLimit of 0 means "unlimited" and, for v1, "skip
// creation entirely".
func NewCGroupHandle(version int, pidsLimit int64, pid int) (*CGroupHandle, error) {
	name := "sandbox-" + uuid.NewString()
	h := &CGroupHandle{version: version, name: name, pidsLimit: pidsLimit}

	switch version {
	case 1:
		if pidsLimit <= 0 {
			return h, nil
		}
		limit := pidsLimit
		cg, err := cgroup1.New(cgroup1.StaticPath("/"+name), &specs.LinuxResources{
			Pids: &specs.LinuxPids{Limit: limit},
		})
		if err != nil {
			return nil, serr.WrapWithDetail(err, serr.ErrCgroupSetup.Kind, "cgroup-create-v1", serr.ErrCgroupSetup.Detail)
		}
		if err := cg.Add(cgroup1.Process{Pid: pid}); err != nil {
			cg.Delete()
			return nil, serr.WrapWithDetail(err, serr.ErrCgroupSetup.Kind, "cgroup-enroll-v1", serr.ErrCgroupSetup.Detail)
		}
		h.v1 = cg
	case 2:
		var resources cgroup2.Resources
		if pidsLimit > 0 {
			resources.Pids = &cgroup2.Pids{Max: pidsLimit}
		}
		m, err := cgroup2.NewManager(cgroupRootV2, "/"+name, &resources)
		if err != nil {
			return nil, serr.WrapWithDetail(err, serr.ErrCgroupSetup.Kind, "cgroup-create-v2", serr.ErrCgroupSetup.Detail)
		}
		if err := m.AddProc(uint64(pid)); err != nil {
			m.Delete()
			return nil, serr.WrapWithDetail(err, serr.ErrCgroupSetup.Kind, "cgroup-enroll-v2", serr.ErrCgroupSetup.Detail)
		}
		h.v2 = m
	default:
		if pidsLimit != 0 {
			return nil, serr.ErrBadCgroupVersion
		}
	}
	return h, nil
}

// Close tears down the cgroup: residual pids are migrated back to the root
// group, then the directory is removed. Teardown is infallible from the
// caller's perspective — failures are logged, never returned, per spec §4.4
// ("destruction is infallible").
func (h *CGroupHandle) Close() {
	if h == nil {
		return
	}
	switch {
	case h.v1 != nil:
		procs, err := h.v1.Processes(cgroup1.Pids, false)
		if err != nil {
			logging.Warn("cgroup v1 teardown: list processes failed",
				"cgroup", h.name, "err", serr.Wrap(err, serr.ErrCgroupTeardown.Kind, "cgroup-list-v1"))
		}
		for _, p := range procs {
			migratePidToRootV1(p.Pid)
		}
		if err := h.v1.Delete(); err != nil {
			logging.Warn("cgroup v1 teardown: delete failed",
				"cgroup", h.name, "err", serr.Wrap(err, serr.ErrCgroupTeardown.Kind, "cgroup-delete-v1"))
		}
	case h.v2 != nil:
		pids, err := h.v2.Procs(false)
		if err != nil {
			logging.Warn("cgroup v2 teardown: list processes failed",
				"cgroup", h.name, "err", serr.Wrap(err, serr.ErrCgroupTeardown.Kind, "cgroup-list-v2"))
		}
		for _, p := range pids {
			migratePidToRootV2(int(p))
		}
		if err := h.v2.Delete(); err != nil {
			logging.Warn("cgroup v2 teardown: delete failed",
				"cgroup", h.name, "err", serr.Wrap(err, serr.ErrCgroupTeardown.Kind, "cgroup-delete-v2"))
		}
	}
}

// migratePidToRootV1 writes pid back to the root pids controller's
// cgroup.procs, matching spec §4.4's literal v1 teardown algorithm (the
// library exposes delete-when-empty, not a migrate-to-parent primitive).
func migratePidToRootV1(pid int) {
	path := filepath.Join("/sys/fs/cgroup/pids", "cgroup.procs")
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		logging.Warn("cgroup v1 teardown: migrate pid failed", "pid", pid, "err", err)
	}
}

func migratePidToRootV2(pid int) {
	path := filepath.Join(cgroupRootV2, "cgroup.procs")
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		logging.Warn("cgroup v2 teardown: migrate pid failed", "pid", pid, "err", err)
	}
}

// Name returns the ephemeral cgroup's directory name, exposed for tests that
// assert the directory is gone after Close.
func (h *CGroupHandle) Name() string {
	if h == nil {
		return ""
	}
	return h.name
}
