package sensor

import "fmt"

// Cadence decodes crank revolution counters into revolutions per minute
type Cadence struct {
	identity
	hasData          bool
	crankRevolutions uint32 // UINT32
	crankEventTime   uint16 // UINT16, 1/1024 s
	value            *float64
}

// NewCadenceWithoutData returns a cadence reading for a sensor that is not reporting yet
func NewCadenceWithoutData(address string) *Cadence {
	return &Cadence{identity: identity{address: address}}
}

func NewCadence(address, name string, crankRevolutions uint32, crankEventTime uint16) *Cadence {
	return &Cadence{
		identity:         identity{address: address, name: name},
		hasData:          true,
		crankRevolutions: crankRevolutions,
		crankEventTime:   crankEventTime,
	}
}

// CadenceFromWheelData reinterprets the wheel fields of a speed reading as
// crank fields. Some cadence sensors (Wahoo CADENCE) report their data in the
// wheel slot of the CSC measurement.
func CadenceFromWheelData(speed *DistanceSpeed) *Cadence {
	if speed == nil {
		return nil
	}
	if !speed.HasData() {
		return &Cadence{identity: speed.identity}
	}
	return NewCadence(speed.address, speed.name, speed.wheelRevolutions, speed.wheelEventTime)
}

func (c *Cadence) HasData() bool {
	return c.hasData
}

func (c *Cadence) HasValue() bool {
	return c.value != nil
}

// Value returns the cadence in rpm
func (c *Cadence) Value() (float64, bool) {
	if c.value == nil {
		return 0, false
	}
	return *c.value, true
}

func (c *Cadence) CrankRevolutions() uint32 {
	return c.crankRevolutions
}

func (c *Cadence) CrankEventTime() uint16 {
	return c.crankEventTime
}

// Compute derives the cadence from the crank revolutions since previous.
// It does nothing unless both readings have data.
func (c *Cadence) Compute(previous *Cadence) error {
	if !c.HasData() || previous == nil || !previous.HasData() {
		return nil
	}

	elapsedMs := eventTimeDiffMillis(c.crankEventTime, previous.crankEventTime)
	if elapsedMs <= 0 {
		c.value = nil
		return fmt.Errorf("%w: cannot compute cadence for %s", ErrInvalidTimeDelta, c.address)
	}

	crankDiff := Diff(int64(c.crankRevolutions), int64(previous.crankRevolutions), Uint32Max)
	rpm := float64(crankDiff) / elapsedMs * 1000 * 60
	c.value = &rpm
	return nil
}

// Reset does nothing, cadence has no accumulated state
func (c *Cadence) Reset() {}

// Equal compares raw counters only. Readings without data are never equal.
func (c *Cadence) Equal(other *Cadence) bool {
	if other == nil || !c.HasData() || !other.HasData() {
		return false
	}
	return c.crankRevolutions == other.crankRevolutions && c.crankEventTime == other.crankEventTime
}

func (c *Cadence) String() string {
	value := "none"
	if v, ok := c.Value(); ok {
		value = fmt.Sprintf("%.1frpm", v)
	}
	return fmt.Sprintf("%s (%s) cadence=%s time=%d count=%d", c.name, c.address, value, c.crankEventTime, c.crankRevolutions)
}
