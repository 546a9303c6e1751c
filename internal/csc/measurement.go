package csc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/sensor"
)

var ErrPayloadTooShort = errors.New("CSC payload too short")

// Measurement is a decoded CSC Measurement characteristic value
// See: https://www.bluetooth.com/specifications/specs/cycling-speed-and-cadence-service-1-0/
type Measurement struct {
	HasWheelData       bool
	WheelRevolutions   uint32
	LastWheelEventTime uint16 // 1/1024 s

	HasCrankData       bool
	CrankRevolutions   uint16
	LastCrankEventTime uint16 // 1/1024 s
}

// ParseMeasurement decodes a CSC Measurement notification
func ParseMeasurement(buf []byte) (Measurement, error) {
	if len(buf) < 1 {
		return Measurement{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooShort, len(buf))
	}

	flags := buf[0]
	m := Measurement{
		HasWheelData: flags&flagWheelRevolutionDataPresent != 0,
		HasCrankData: flags&flagCrankRevolutionDataPresent != 0,
	}
	offset := 1

	if m.HasWheelData {
		if offset+wheelDataLength > len(buf) {
			return Measurement{}, fmt.Errorf("%w: wheel data at offset %d of %d bytes", ErrPayloadTooShort, offset, len(buf))
		}
		m.WheelRevolutions = binary.LittleEndian.Uint32(buf[offset:])
		m.LastWheelEventTime = binary.LittleEndian.Uint16(buf[offset+4:])
		offset += wheelDataLength
	}

	if m.HasCrankData {
		if offset+crankDataLength > len(buf) {
			return Measurement{}, fmt.Errorf("%w: crank data at offset %d of %d bytes", ErrPayloadTooShort, offset, len(buf))
		}
		m.CrankRevolutions = binary.LittleEndian.Uint16(buf[offset:])
		m.LastCrankEventTime = binary.LittleEndian.Uint16(buf[offset+2:])
	}

	return m, nil
}

// Bytes encodes the measurement as it is sent over the air
func (m Measurement) Bytes() []byte {
	buf := make([]byte, 1, 1+wheelDataLength+crankDataLength)
	if m.HasWheelData {
		buf[0] |= flagWheelRevolutionDataPresent
		buf = binary.LittleEndian.AppendUint32(buf, m.WheelRevolutions)
		buf = binary.LittleEndian.AppendUint16(buf, m.LastWheelEventTime)
	}
	if m.HasCrankData {
		buf[0] |= flagCrankRevolutionDataPresent
		buf = binary.LittleEndian.AppendUint16(buf, m.CrankRevolutions)
		buf = binary.LittleEndian.AppendUint16(buf, m.LastCrankEventTime)
	}
	return buf
}

// Readings builds the sensor readings for the data present in the measurement.
// A reading for absent data has no data.
func (m Measurement) Readings(address, name string) (*sensor.Cadence, *sensor.DistanceSpeed) {
	cadence := sensor.NewCadenceWithoutData(address)
	if m.HasCrankData {
		cadence = sensor.NewCadence(address, name, uint32(m.CrankRevolutions), m.LastCrankEventTime)
	}
	speed := sensor.NewDistanceSpeedWithoutData(address)
	if m.HasWheelData {
		speed = sensor.NewDistanceSpeed(address, name, m.WheelRevolutions, m.LastWheelEventTime)
	}
	return cadence, speed
}

// Feature is the decoded CSC Feature characteristic
type Feature struct {
	WheelRevolutionData    bool
	CrankRevolutionData    bool
	MultipleSensorLocation bool
}

func ParseFeature(buf []byte) (Feature, error) {
	if len(buf) < 2 {
		return Feature{}, fmt.Errorf("%w: feature is %d bytes", ErrPayloadTooShort, len(buf))
	}
	flags := binary.LittleEndian.Uint16(buf)
	return Feature{
		WheelRevolutionData:    flags&featureWheelRevolutionData != 0,
		CrankRevolutionData:    flags&featureCrankRevolutionData != 0,
		MultipleSensorLocation: flags&featureMultipleSensorLocation != 0,
	}, nil
}

func (f Feature) String() string {
	return fmt.Sprintf("wheel=%t crank=%t multiple_locations=%t", f.WheelRevolutionData, f.CrankRevolutionData, f.MultipleSensorLocation)
}
