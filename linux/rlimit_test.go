package linux

import "testing"

func TestCPURlimitSeconds(t *testing.T) {
	cases := []struct {
		ms   int64
		want uint64
	}{
		{0, 1},
		{500, 1},
		{800, 1},
		{801, 2},
		{999, 2},
		{1000, 2},
		{1801, 3},
	}
	for _, c := range cases {
		if got := CPURlimitSeconds(c.ms); got != c.want {
			t.Errorf("CPURlimitSeconds(%d) = %d, want %d", c.ms, got, c.want)
		}
	}
}

func TestMemoryLimitMultiplierIsTwo(t *testing.T) {
	if MemoryLimitMultiplier != 2 {
		t.Errorf("MemoryLimitMultiplier = %d, want 2", MemoryLimitMultiplier)
	}
}
