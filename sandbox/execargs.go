package sandbox

import (
	"strconv"
	"strings"

	serr "sandboxrun/errors"
)

// fixedEnv is the exactly-three-entry envp every sandboxed target runs with
// (spec §4.1). Nothing else is inherited from the caller's environment.
var fixedEnv = []string{
	"PATH=/root/.cargo/bin:/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
	"HOME=/tmp",
	"TERM=xterm",
}

// ExecArgs is the (path, argv, envp) triple built from a SandboxConfig's
// Command, ready to be handed to os/exec or a raw execve. Spec §3 describes
// ExecArgs as owning backing memory held until teardown because a manually
// assembled C-string vector must outlive the raw execve call that consumes
// it; in Go, ExecArgs is a plain value holding ordinary []string slices,
// which the garbage collector keeps reachable for as long as the struct
// itself is reachable — no explicit destruction step is needed, and none is
// provided (see DESIGN.md).
type ExecArgs struct {
	Path string
	Argv []string
	Envp []string
}

// BuildExecArgs validates command (no embedded NULs, non-empty) and returns
// the argv/envp triple per spec §4.1. command[0] is both the path and
// argv[0].
func BuildExecArgs(command []string) (*ExecArgs, error) {
	if len(command) == 0 {
		return nil, serr.ErrEmptyCommand
	}
	for i, s := range command {
		if strings.IndexByte(s, 0) >= 0 {
			return nil, serr.New(serr.ErrInvalidString, "build-execargs", positionDetail(i))
		}
	}
	return &ExecArgs{
		Path: command[0],
		Argv: append([]string{}, command...),
		Envp: append([]string{}, fixedEnv...),
	}, nil
}

func positionDetail(i int) string {
	return "embedded NUL in argument at position " + strconv.Itoa(i)
}
