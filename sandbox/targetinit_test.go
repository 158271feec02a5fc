package sandbox

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDup3FileRedirectsDescriptor(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	const newFD = 917 // arbitrarily high, unlikely to collide with an open fd
	require.NoError(t, dup3File(w, newFD))

	dup := os.NewFile(uintptr(newFD), "dup")
	defer dup.Close()

	const payload = "hello from dup3"
	_, err = dup.WriteString(payload)
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	_, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, payload, string(buf))
}

func TestDecodeTargetConfigRoundTrip(t *testing.T) {
	want := &TargetConfig{
		Command:           []string{"/bin/echo", "hi"},
		TimeLimitMs:       1000,
		MemoryLimitKib:    2048,
		FileSizeLimitBits: 4096,
	}
	t.Setenv(targetEnvVar, `{"Command":["/bin/echo","hi"],"TimeLimitMs":1000,"MemoryLimitKib":2048,"FileSizeLimitBits":4096}`)

	got, err := decodeTargetConfig()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeTargetConfigBadJSON(t *testing.T) {
	t.Setenv(targetEnvVar, "not json")
	_, err := decodeTargetConfig()
	require.Error(t, err)
}
