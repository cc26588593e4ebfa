package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"CPU-bound task (1.0x multiplier)", 1.0, 0, 1, availableCPU},
		{"I/O-bound task (2.0x multiplier)", 2.0, 0, 1, availableCPU * 2},
		{"With limit lower than calculated", 2.0, 2, 1, 2},
		{"Very low multiplier", 0.1, 0, 1, max(1, int(float64(availableCPU)*0.1))},
		{"Zero multiplier", 0.0, 0, 1, 1},
		{"Negative multiplier", -1.0, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)

			if got < tt.minExpect {
				t.Errorf("Count(%v, %d) = %d, expected >= %d", tt.multiplier, tt.limit, got, tt.minExpect)
			}
			if got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected <= %d", tt.multiplier, tt.limit, got, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int // -1 means fall back to the calculated count
	}{
		{"Valid override", "8", 0, 8},
		{"Override with limit", "20", 10, 10},
		{"Override below limit", "5", 10, 5},
		{"Invalid override (non-numeric)", "invalid", 0, -1},
		{"Invalid override (zero)", "0", 0, -1},
		{"Invalid override (negative)", "-5", 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.envValue)

			got := Count(1.0, tt.limit)
			if tt.expected == -1 {
				if got < 1 {
					t.Errorf("Count with invalid override should return at least 1, got %d", got)
				}
				return
			}
			if got != tt.expected {
				t.Errorf("Count(1.0, %d) with %s=%s = %d, want %d", tt.limit, EnvOverride, tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestForIO(t *testing.T) {
	t.Setenv(EnvOverride, "")

	for _, limit := range []int{0, 1, 4, 8} {
		got := ForIO(limit)
		if got < 1 {
			t.Errorf("ForIO(%d) = %d, want >= 1", limit, got)
		}
		if limit > 0 && got > limit {
			t.Errorf("ForIO(%d) = %d, should not exceed limit", limit, got)
		}
	}
}

func TestForLoads(t *testing.T) {
	t.Setenv(EnvOverride, "")

	tests := []struct {
		name       string
		configured int
		limit      int
		check      func(int) bool
	}{
		{"configured wins", 3, 4, func(n int) bool { return n == 3 }},
		{"configured capped", 10, 4, func(n int) bool { return n == 4 }},
		{"derived from CPUs", 0, 4, func(n int) bool { return n >= 1 && n <= 4 }},
		{"negative means derived", -2, 0, func(n int) bool { return n >= 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForLoads(tt.configured, tt.limit); !tt.check(got) {
				t.Errorf("ForLoads(%d, %d) = %d", tt.configured, tt.limit, got)
			}
		})
	}
}

func BenchmarkCount(b *testing.B) {
	b.Setenv(EnvOverride, "")
	for i := 0; i < b.N; i++ {
		_ = Count(2.0, 4)
	}
}
