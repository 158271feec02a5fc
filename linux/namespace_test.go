package linux

import (
	"syscall"
	"testing"
)

func TestSandboxCloneFlags(t *testing.T) {
	want := []uintptr{
		CLONE_NEWUTS, CLONE_NEWNET, CLONE_NEWNS, CLONE_NEWIPC, CLONE_NEWCGROUP, CLONE_NEWPID,
	}
	for _, flag := range want {
		if SandboxCloneFlags&flag == 0 {
			t.Errorf("SandboxCloneFlags missing flag %#x", flag)
		}
	}
	if SandboxCloneFlags&syscall.CLONE_NEWUSER != 0 {
		t.Error("SandboxCloneFlags must never include CLONE_NEWUSER")
	}
}

func TestBuildSysProcAttr(t *testing.T) {
	attr := BuildSysProcAttr()
	if attr.Cloneflags != SandboxCloneFlags {
		t.Errorf("Cloneflags = %#x, want %#x", attr.Cloneflags, SandboxCloneFlags)
	}
	if attr.Unshareflags != syscall.CLONE_NEWNS {
		t.Errorf("Unshareflags = %#x, want CLONE_NEWNS", attr.Unshareflags)
	}
	if !attr.Setsid {
		t.Error("Setsid should be true")
	}
}

func TestSetHostnameEmpty(t *testing.T) {
	if err := SetHostname(""); err != nil {
		t.Errorf("SetHostname(\"\") should be a no-op, got %v", err)
	}
}

func TestSetDomainnameEmpty(t *testing.T) {
	if err := SetDomainname(""); err != nil {
		t.Errorf("SetDomainname(\"\") should be a no-op, got %v", err)
	}
}
