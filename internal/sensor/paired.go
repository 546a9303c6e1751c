package sensor

// CadenceAndSpeed groups the cadence and speed readings of a sensor that
// exposes both in the same CSC measurement.
type CadenceAndSpeed struct {
	identity
	cadence       *Cadence
	distanceSpeed *DistanceSpeed
}

func NewCadenceAndSpeed(address, name string, cadence *Cadence, distanceSpeed *DistanceSpeed) *CadenceAndSpeed {
	return &CadenceAndSpeed{
		identity:      identity{address: address, name: name},
		cadence:       cadence,
		distanceSpeed: distanceSpeed,
	}
}

// Cadence returns nil when the sensor has not reported cadence
func (p *CadenceAndSpeed) Cadence() *Cadence {
	if p == nil {
		return nil
	}
	return p.cadence
}

// DistanceSpeed returns nil when the sensor has not reported speed
func (p *CadenceAndSpeed) DistanceSpeed() *DistanceSpeed {
	if p == nil {
		return nil
	}
	return p.distanceSpeed
}

func (p *CadenceAndSpeed) HasValue() bool {
	if p == nil {
		return false
	}
	return (p.cadence != nil && p.cadence.HasValue()) ||
		(p.distanceSpeed != nil && p.distanceSpeed.HasValue())
}
