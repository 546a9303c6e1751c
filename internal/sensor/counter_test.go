package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		current  int64
		previous int64
		max      int64
		want     int64
	}{
		{"no wrap", 100, 50, Uint16Max, 50},
		{"equal", 42, 42, Uint16Max, 0},
		{"wrap 16 bit", 5, 65530, Uint16Max, 11},
		{"wrap at boundary", 0, 65535, Uint16Max, 1},
		{"wrap 32 bit", 3, 4294967294, Uint32Max, 5},
		{"full 32 bit range", 4294967295, 0, Uint32Max, 4294967295},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(tt.current, tt.previous, tt.max))
		})
	}
}

func TestDiff_16BitRangeAndComplement(t *testing.T) {
	values := []int64{0, 1, 2, 255, 256, 1023, 1024, 32767, 32768, 65000, 65534, 65535}
	for _, a := range values {
		for _, b := range values {
			forward := Diff(a, b, Uint16Max)
			assert.GreaterOrEqual(t, forward, int64(0))
			assert.LessOrEqual(t, forward, Uint16Max)
			if a != b {
				assert.Equal(t, int64(65536), forward+Diff(b, a, Uint16Max), "a=%d b=%d", a, b)
			}
		}
	}
}

func TestEventTimeDiffMillis(t *testing.T) {
	assert.Equal(t, 500.0, eventTimeDiffMillis(512, 0))
	assert.Equal(t, 1000.0, eventTimeDiffMillis(1000, 65512))
	assert.Equal(t, 0.0, eventTimeDiffMillis(77, 77))
}
