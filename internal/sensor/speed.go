package sensor

import (
	"fmt"
	"time"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/units"
)

const millimetersPerMeter = 1000

// SpeedData is the value derived from two consecutive wheel readings
type SpeedData struct {
	// Distance covered since the previous reading
	Distance units.Distance
	// DistanceOverall is the odometer since the last reset
	DistanceOverall units.Distance
	Speed           units.Speed
}

func (d SpeedData) String() string {
	return fmt.Sprintf("distance=%v overall=%v speed=%v", d.Distance, d.DistanceOverall, d.Speed)
}

// DistanceSpeed decodes wheel revolution counters into distance and speed
type DistanceSpeed struct {
	identity
	hasData          bool
	wheelRevolutions uint32 // UINT32 on the wire, wraps as UINT16 below
	wheelEventTime   uint16 // UINT16, 1/1024 s
	value            *SpeedData
}

// NewDistanceSpeedWithoutData returns a speed reading for a sensor that is not reporting yet
func NewDistanceSpeedWithoutData(address string) *DistanceSpeed {
	return &DistanceSpeed{identity: identity{address: address}}
}

func NewDistanceSpeed(address, name string, wheelRevolutions uint32, wheelEventTime uint16) *DistanceSpeed {
	return &DistanceSpeed{
		identity:         identity{address: address, name: name},
		hasData:          true,
		wheelRevolutions: wheelRevolutions,
		wheelEventTime:   wheelEventTime,
	}
}

func (d *DistanceSpeed) HasData() bool {
	return d.hasData
}

func (d *DistanceSpeed) HasValue() bool {
	return d.value != nil
}

func (d *DistanceSpeed) Value() (SpeedData, bool) {
	if d.value == nil {
		return SpeedData{}, false
	}
	return *d.value, true
}

func (d *DistanceSpeed) WheelRevolutions() uint32 {
	return d.wheelRevolutions
}

func (d *DistanceSpeed) WheelEventTime() uint16 {
	return d.wheelEventTime
}

// Compute derives distance, odometer and speed from the wheel revolutions
// since previous. It does nothing unless both readings have data.
func (d *DistanceSpeed) Compute(previous *DistanceSpeed, wheelCircumferenceMM int) error {
	if !d.HasData() || previous == nil || !previous.HasData() {
		return nil
	}

	elapsedMs := eventTimeDiffMillis(d.wheelEventTime, previous.wheelEventTime)
	elapsed := time.Duration(int64(elapsedMs)) * time.Millisecond
	if elapsed <= 0 {
		d.value = nil
		return fmt.Errorf("%w: cannot compute speed for %s", ErrInvalidTimeDelta, d.address)
	}

	// The wheel counter wraps at 16 bits. Garmin Speed 2 sensors have been
	// seen counting backwards, so the delta is taken as absolute.
	wheelDiff := Diff(int64(d.wheelRevolutions), int64(previous.wheelRevolutions), Uint16Max)
	if wheelDiff < 0 {
		wheelDiff = -wheelDiff
	}

	distance := units.DistanceOf(float64(wheelDiff*int64(wheelCircumferenceMM)) / millimetersPerMeter)
	distanceOverall := distance
	if previousValue, ok := previous.Value(); ok {
		distanceOverall = distance.Plus(previousValue.DistanceOverall)
	}

	d.value = &SpeedData{
		Distance:        distance,
		DistanceOverall: distanceOverall,
		Speed:           units.SpeedOf(distance, elapsed),
	}
	return nil
}

// Reset zeroes the odometer and keeps the last distance and speed sample
func (d *DistanceSpeed) Reset() {
	if d.value == nil {
		return
	}
	d.value = &SpeedData{
		Distance:        d.value.Distance,
		DistanceOverall: units.DistanceOf(0),
		Speed:           d.value.Speed,
	}
}

// Equal compares raw counters only. Readings without data are never equal.
func (d *DistanceSpeed) Equal(other *DistanceSpeed) bool {
	if other == nil || !d.HasData() || !other.HasData() {
		return false
	}
	return d.wheelRevolutions == other.wheelRevolutions && d.wheelEventTime == other.wheelEventTime
}

func (d *DistanceSpeed) String() string {
	value := "none"
	if v, ok := d.Value(); ok {
		value = v.String()
	}
	return fmt.Sprintf("%s (%s) data=%s time=%d count=%d", d.name, d.address, value, d.wheelEventTime, d.wheelRevolutions)
}
