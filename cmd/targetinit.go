package cmd

import (
	"github.com/spf13/cobra"

	"sandboxrun/sandbox"
)

// targetInitCmd is L3: the re-exec'd, already-credential-dropped process
// childinit.go clones into via "/proc/self/exe" (see sandbox.RunChildInit /
// sandbox.RunTargetInit). It applies rlimits and the seccomp filter to
// itself and then syscall.Exec's into the real target, so those caps never
// bind the namespace-init process (L2) that spawned it. Never invoked
// directly by a user.
var targetInitCmd = &cobra.Command{
	Use:    "__target-init",
	Short:  "Apply rlimits/seccomp and exec the sandboxed target (internal use)",
	Hidden: true,
	Args:   cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sandbox.RunTargetInit()
	},
}

func init() {
	rootCmd.AddCommand(targetInitCmd)
}
