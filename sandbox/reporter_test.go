package sandbox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteStatusFixedOrder(t *testing.T) {
	var buf bytes.Buffer
	status := &RunnerStatus{TimeUsedMs: 42, MemoryUsedKib: 1024, ExitCode: 0, Status: 0, Signal: 0}
	require.NoError(t, WriteStatus(&buf, status))

	want := "time_used = 42\nmemory_used = 1024\nexit_code = 0\nstatus = 0\nsignal = 0\n"
	require.Equal(t, want, buf.String())
}

func TestStatusRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := &RunnerStatus{TimeUsedMs: 987, MemoryUsedKib: 20480, ExitCode: 0, Status: 9, Signal: 9}
	require.NoError(t, WriteStatus(&buf, want))

	got, err := ReadStatus(&buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
