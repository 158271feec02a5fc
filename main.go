// sandboxrun runs a single untrusted program under Linux namespace, seccomp,
// rlimit and cgroup isolation, and reports its resource usage and exit
// status — typically used to judge submitted programs in an automated
// contest or classroom setting.
//
// Usage:
//
//	sandboxrun [-i INPUT] [-o OUTPUT] [-e ERROR] [-w WORKDIR] --rootfs DIR
//	           [-r RESULT] [-t TIME_MS] [-m MEM_KIB] [-f FSIZE_BITS]
//	           [-c {1,2}] [-p PIDS] [-v...] -- CMD [ARG...]
package main

import (
	"fmt"
	"os"

	"sandboxrun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sandboxrun: %v\n", err)
		os.Exit(1)
	}
}
