package units

import (
	"fmt"
	"time"
)

// Speed is a velocity in meters per second
type Speed float64

// SpeedOf returns the average speed covering distance in duration.
// A non-positive duration yields zero speed.
func SpeedOf(distance Distance, duration time.Duration) Speed {
	if duration <= 0 {
		return 0
	}
	return Speed(distance.ToM() / duration.Seconds())
}

// ToMPS returns the speed in meters per second
func (s Speed) ToMPS() float64 {
	return float64(s)
}

// ToKMH returns the speed in kilometers per hour
func (s Speed) ToKMH() float64 {
	return float64(s) * 3.6
}

func (s Speed) String() string {
	return fmt.Sprintf("%.2fm/s", float64(s))
}
