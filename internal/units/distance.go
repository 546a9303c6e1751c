package units

import "fmt"

// Distance is a length in meters
type Distance float64

// DistanceOf returns a Distance of the given number of meters
func DistanceOf(meters float64) Distance {
	return Distance(meters)
}

func (d Distance) Plus(other Distance) Distance {
	return d + other
}

func (d Distance) Minus(other Distance) Distance {
	return d - other
}

// ToM returns the distance in meters
func (d Distance) ToM() float64 {
	return float64(d)
}

// ToKM returns the distance in kilometers
func (d Distance) ToKM() float64 {
	return float64(d) / 1000
}

func (d Distance) String() string {
	return fmt.Sprintf("%.2fm", float64(d))
}
