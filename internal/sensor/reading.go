package sensor

import "errors"

// ErrInvalidTimeDelta is returned by Compute when two readings of the same
// device are zero or less time apart. The reading is left without a value.
var ErrInvalidTimeDelta = errors.New("timestamps difference is invalid")

// Reading is the capability shared by every value decoded from a sensor.
// T is the type of the derived value.
type Reading[T any] interface {
	SensorAddress() string
	SensorName() string
	// HasData reports whether all raw counter fields are present
	HasData() bool
	// HasValue reports whether a derived value has been computed
	HasValue() bool
	Value() (T, bool)
	// Reset clears accumulated state at a lap boundary
	Reset()
}

var (
	_ Reading[float64]   = (*Cadence)(nil)
	_ Reading[SpeedData] = (*DistanceSpeed)(nil)
)

type identity struct {
	address string
	name    string
}

func (i identity) SensorAddress() string {
	return i.address
}

func (i identity) SensorName() string {
	return i.name
}
