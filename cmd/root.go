// Package cmd implements the sandboxrun CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	serr "sandboxrun/errors"
	"sandboxrun/logging"
	"sandboxrun/sandbox"
)

var (
	flagStdin    string
	flagStdout   string
	flagStderr   string
	flagWorkdir  string
	flagRootfs   string
	flagResult   string
	flagTimeMs   int64
	flagMemKib   int64
	flagFsize    int64
	flagCgroup   int
	flagPids     int64
	flagVerbose  int
	flagLogLevel string
	flagLogFmt   string
)

// rootCmd is the base command for sandboxrun. The sandboxed command itself
// is everything after "--" (cmd.ArgsLenAtDash), matching spec §6's CLI
// surface exactly.
var rootCmd = &cobra.Command{
	Use:           "sandboxrun [flags] -- CMD [ARG...]",
	Short:         "Run a single untrusted program under namespace/seccomp/cgroup isolation",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
	RunE: runSandbox,
}

func init() {
	rootCmd.DisableFlagsInUseLine = true
	rootCmd.Flags().StringVarP(&flagStdin, "stdin", "i", "/STDIN/", "input source: /STDIN/ or a path opened O_RDONLY")
	rootCmd.Flags().StringVarP(&flagStdout, "stdout", "o", "/STDOUT/", "output sink: /STDOUT/ or a path opened O_CREAT|O_RDWR")
	rootCmd.Flags().StringVarP(&flagStderr, "stderr", "e", "/STDERR/", "error sink: /STDERR/ or a path opened O_CREAT|O_RDWR")
	rootCmd.Flags().StringVarP(&flagWorkdir, "workdir", "w", "/WORKDIR/", "host path bind-mounted at /tmp inside the sandbox")
	rootCmd.Flags().StringVar(&flagRootfs, "rootfs", "", "absolute host path to a pre-populated filesystem tree")
	rootCmd.Flags().StringVarP(&flagResult, "result", "r", "/STDOUT/", "where the RunnerStatus report is written")
	rootCmd.Flags().Int64VarP(&flagTimeMs, "time-limit", "t", 0, "CPU time cap in milliseconds (0 = unlimited)")
	rootCmd.Flags().Int64VarP(&flagMemKib, "mem-limit", "m", 0, "address-space cap in KiB (0 = unlimited)")
	rootCmd.Flags().Int64VarP(&flagFsize, "fsize-limit", "f", 0, "file-size write cap in bits (0 = unlimited)")
	rootCmd.Flags().IntVarP(&flagCgroup, "cgroup-version", "c", 2, "cgroup version: 1 or 2")
	rootCmd.Flags().Int64VarP(&flagPids, "pids-limit", "p", 0, "cap on processes in the cgroup (0 = unlimited)")
	rootCmd.Flags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (repeatable)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&flagLogFmt, "log-format", "text", "log output format: text or json")
	rootCmd.MarkFlagRequired("rootfs")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setupLogging() {
	level := logging.ParseLevel(flagLogLevel)
	if flagVerbose > 0 {
		level = slog.LevelDebug
	}
	logging.SetDefault(logging.NewLogger(logging.Config{
		Level:  level,
		Format: flagLogFmt,
		Output: os.Stderr,
	}))
}

// runSandbox builds a sandbox.Config from flags plus the command trailing
// "--" and drives a single run, per spec §6's CLI contract.
func runSandbox(cmd *cobra.Command, args []string) error {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return fmt.Errorf("sandboxed command required after --")
	}
	command := args[dash:]
	if len(command) == 0 {
		return fmt.Errorf("sandboxed command required after --")
	}

	stdinFD, err := resolveFD(flagStdin, sentinelStdin, os.O_RDONLY, 0, 0)
	if err != nil {
		return err
	}
	stdoutFD, err := resolveFD(flagStdout, sentinelStdout, os.O_CREATE|os.O_RDWR, 0644, 1)
	if err != nil {
		return err
	}
	stderrFD, err := resolveFD(flagStderr, sentinelStderr, os.O_CREATE|os.O_RDWR, 0644, 2)
	if err != nil {
		return err
	}
	resultFD, err := resolveFD(flagResult, sentinelStdout, os.O_CREATE|os.O_RDWR, 0644, 1)
	if err != nil {
		return err
	}
	workdir := flagWorkdir
	if workdir == sentinelWorkdir {
		workdir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	cfg := &sandbox.Config{
		Command:           command,
		Rootfs:            flagRootfs,
		Workdir:           workdir,
		StdinFD:           stdinFD,
		StdoutFD:          stdoutFD,
		StderrFD:          stderrFD,
		ResultFD:          resultFD,
		TimeLimitMs:       flagTimeMs,
		MemoryLimitKib:    flagMemKib,
		FileSizeLimitBits: flagFsize,
		PidsLimit:         flagPids,
		CgroupVersion:     flagCgroup,
	}

	status, err := sandbox.Run(cfg)
	if err != nil {
		return err
	}
	logging.Default().Info("run complete",
		"exit_code", status.ExitCode, "signal", status.Signal,
		"time_used_ms", status.TimeUsedMs, "memory_used_kib", status.MemoryUsedKib)
	return nil
}

// Sentinel strings from spec §6: "use the inherited standard descriptor /
// current directory".
const (
	sentinelStdin   = "/STDIN/"
	sentinelStdout  = "/STDOUT/"
	sentinelStderr  = "/STDERR/"
	sentinelWorkdir = "/WORKDIR/"
)

// resolveFD turns a CLI flag value into a raw file descriptor: the
// matching sentinel means "use the inherited standard descriptor"
// (inheritedFD), anything else is a path opened with openFlags/perm.
func resolveFD(value, sentinel string, openFlags int, perm os.FileMode, inheritedFD int) (int, error) {
	if value == sentinel {
		return inheritedFD, nil
	}
	f, err := os.OpenFile(value, openFlags, perm)
	if err != nil {
		return 0, serr.Wrap(err, serr.ErrIo, "open-"+value)
	}
	return int(f.Fd()), nil
}
