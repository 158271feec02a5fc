package cmd

import (
	"github.com/spf13/cobra"

	"sandboxrun/sandbox"
)

// sandboxInitCmd is L2: the re-exec'd namespace-init process the
// orchestrator clones into (see sandbox.Run / sandbox.RunChildInit). It is
// never invoked directly by a user — only by the orchestrator re-executing
// this same binary with this argument inside a fresh set of namespaces.
var sandboxInitCmd = &cobra.Command{
	Use:    "__sandbox-init",
	Short:  "Run the in-sandbox security pipeline (internal use)",
	Hidden: true,
	Args:   cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sandbox.RunChildInit()
	},
}

func init() {
	rootCmd.AddCommand(sandboxInitCmd)
}
