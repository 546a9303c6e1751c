package sensor

import "math"

// Maximum values of the fixed width counters reported by CSC sensors
const (
	Uint16Max int64 = math.MaxUint16
	Uint32Max int64 = math.MaxUint32
)

// Diff returns the forward distance from previous to current on a counter
// that wraps back to zero after max. For operands inside the counter width
// the result is in [0, max].
func Diff(current, previous, max int64) int64 {
	if current >= previous {
		return current - previous
	}
	return (max - previous) + current + 1
}

// eventTimeDiffMillis converts the wrapped difference of two 1/1024 s event
// timestamps to milliseconds.
func eventTimeDiffMillis(current, previous uint16) float64 {
	ticks := Diff(int64(current), int64(previous), Uint16Max)
	return float64(ticks) / 1024 * 1000
}
