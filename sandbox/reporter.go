package sandbox

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	serr "sandboxrun/errors"
)

// statusFieldOrder is the fixed key order spec §4.7 / §6 requires.
var statusFieldOrder = []string{"time_used", "memory_used", "exit_code", "status", "signal"}

// WriteStatus serializes status as five "key = value" lines in the fixed
// order time_used, memory_used, exit_code, status, signal, each terminated
// with \n. The descriptor is written synchronously and never closed — it
// may be one of the caller's standard descriptors.
func WriteStatus(w io.Writer, status *RunnerStatus) error {
	values := map[string]int64{
		"time_used":   status.TimeUsedMs,
		"memory_used": status.MemoryUsedKib,
		"exit_code":   int64(status.ExitCode),
		"status":      int64(status.Status),
		"signal":      int64(status.Signal),
	}
	for _, key := range statusFieldOrder {
		if _, err := fmt.Fprintf(w, "%s = %d\n", key, values[key]); err != nil {
			return serr.Wrap(err, serr.ErrIo, "write-status")
		}
	}
	return nil
}

// ReadStatus parses the format WriteStatus produces. Used by tests to
// round-trip a RunnerStatus, and by any caller that wants to read back a
// result file rather than parse it ad hoc.
func ReadStatus(r io.Reader) (*RunnerStatus, error) {
	fields := make(map[string]int64, len(statusFieldOrder))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, serr.Wrap(err, serr.ErrIo, "parse-status")
		}
		fields[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, serr.Wrap(err, serr.ErrIo, "read-status")
	}
	return &RunnerStatus{
		TimeUsedMs:    fields["time_used"],
		MemoryUsedKib: fields["memory_used"],
		ExitCode:      int(fields["exit_code"]),
		Status:        int(fields["status"]),
		Signal:        int(fields["signal"]),
	}, nil
}
