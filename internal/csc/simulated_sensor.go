package csc

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/bt"
)

// SimulatedSensorConfig holds configuration for creating a simulated sensor
type SimulatedSensorConfig struct {
	Address              string
	LocalName            string
	CadenceRPM           float64
	SpeedKMH             float64
	WheelCircumferenceMM int
	// WheelAsCadence sends crank data in the wheel fields like a Wahoo CADENCE
	WheelAsCadence bool
}

// SimulatedSensor implements bt.BTDevice and produces CSC notifications
// without Bluetooth hardware. Event times start close to their wrap point.
type SimulatedSensor struct {
	logger *log.Logger
	config SimulatedSensorConfig

	mu        sync.Mutex
	connected bool
	callback  func([]byte)

	clockTicks       float64 // 1/1024 s
	crankRemainder   float64
	crankRevolutions uint16
	crankEventTime   uint16
	wheelRemainder   float64
	wheelRevolutions uint32
	wheelEventTime   uint16
}

var _ bt.BTDevice = (*SimulatedSensor)(nil)

func NewSimulatedSensor(logger *log.Logger, config SimulatedSensorConfig) *SimulatedSensor {
	if logger == nil {
		panic("SimulatedSensor: logger cannot be nil")
	}
	if config.WheelCircumferenceMM <= 0 {
		panic("SimulatedSensor: wheel circumference must be > 0")
	}
	const startTicks = math.MaxUint16 - 2048
	return &SimulatedSensor{
		logger:           logger,
		config:           config,
		clockTicks:       startTicks,
		crankEventTime:   startTicks,
		wheelRevolutions: math.MaxUint16 - 20,
		wheelEventTime:   startTicks,
	}
}

// SetTargets changes the simulated cadence and speed
func (s *SimulatedSensor) SetTargets(cadenceRPM, speedKMH float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.CadenceRPM = cadenceRPM
	s.config.SpeedKMH = speedKMH
}

// Targets returns the simulated cadence and speed
func (s *SimulatedSensor) Targets() (cadenceRPM, speedKMH float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.CadenceRPM, s.config.SpeedKMH
}

// Tick advances the simulation by elapsed and sends a notification when subscribed
func (s *SimulatedSensor) Tick(elapsed time.Duration) {
	s.mu.Lock()
	s.clockTicks += elapsed.Seconds() * 1024
	now := uint16(uint64(s.clockTicks) & math.MaxUint16)

	s.crankRemainder += s.config.CadenceRPM / 60 * elapsed.Seconds()
	if whole := math.Floor(s.crankRemainder); whole >= 1 {
		s.crankRemainder -= whole
		s.crankRevolutions += uint16(whole)
		s.crankEventTime = now
	}

	circumferenceM := float64(s.config.WheelCircumferenceMM) / 1000
	s.wheelRemainder += s.config.SpeedKMH / 3.6 * elapsed.Seconds() / circumferenceM
	if whole := math.Floor(s.wheelRemainder); whole >= 1 {
		s.wheelRemainder -= whole
		s.wheelRevolutions += uint32(whole)
		s.wheelEventTime = now
	}

	payload := s.measurementLocked().Bytes()
	callback := s.callback
	connected := s.connected
	s.mu.Unlock()

	if connected && callback != nil {
		callback(payload)
	}
}

func (s *SimulatedSensor) measurementLocked() Measurement {
	if s.config.WheelAsCadence {
		return Measurement{
			HasWheelData:       true,
			WheelRevolutions:   uint32(s.crankRevolutions),
			LastWheelEventTime: s.crankEventTime,
		}
	}
	return Measurement{
		HasWheelData:       true,
		WheelRevolutions:   s.wheelRevolutions,
		LastWheelEventTime: s.wheelEventTime,
		HasCrankData:       true,
		CrankRevolutions:   s.crankRevolutions,
		LastCrankEventTime: s.crankEventTime,
	}
}

// Run ticks every interval until ctx is done
func (s *SimulatedSensor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(interval)
		}
	}
}

// Connect marks the sensor connected
func (s *SimulatedSensor) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.logger.Printf("SimulatedSensor: %s connected", s.config.Address)
}

func (s *SimulatedSensor) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.callback = nil
	s.logger.Printf("SimulatedSensor: %s disconnected", s.config.Address)
}

func (s *SimulatedSensor) GetAddressString() string {
	return s.config.Address
}

func (s *SimulatedSensor) GetLocalName() string {
	return s.config.LocalName
}

func (s *SimulatedSensor) GetScanRSSI() (int16, error) {
	return -50, nil
}

func (s *SimulatedSensor) GetScanLastSeen() time.Time {
	return time.Now()
}

func (s *SimulatedSensor) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *SimulatedSensor) GetState() bt.BTDeviceState {
	if s.IsConnected() {
		return bt.Connected
	}
	return bt.Disconnected
}

func (s *SimulatedSensor) IsRecentlyScanned() bool {
	return true
}

func (s *SimulatedSensor) WaitForConnection(ctx context.Context) error {
	if s.IsConnected() {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("waiting for connection to %s: %w", s.config.Address, ctx.Err())
}

func (s *SimulatedSensor) EnableNotifications(serviceUuid string, characteristicUuid string, callbackFunc func(buf []byte)) error {
	if serviceUuid != ServiceUUIDCyclingSpeedCadence || characteristicUuid != CharUUIDCSCMeasurement {
		return fmt.Errorf("characteristic %s not found in service %s", characteristicUuid, serviceUuid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return bt.ErrNotConnected
	}
	s.callback = callbackFunc
	return nil
}

func (s *SimulatedSensor) DisableNotifications(serviceUuid string, characteristicUuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = nil
	return nil
}

func (s *SimulatedSensor) ReadCharacteristic(serviceUuid string, characteristicUuid string) ([]byte, error) {
	if serviceUuid != ServiceUUIDCyclingSpeedCadence || characteristicUuid != CharUUIDCSCFeature {
		return nil, fmt.Errorf("characteristic %s not readable", characteristicUuid)
	}
	flags := featureWheelRevolutionData
	if !s.config.WheelAsCadence {
		flags |= featureCrankRevolutionData
	}
	return []byte{byte(flags), byte(flags >> 8)}, nil
}

func (s *SimulatedSensor) GetServiceUUIDs() []string {
	return []string{ServiceUUIDCyclingSpeedCadence}
}

func (s *SimulatedSensor) HasServiceUUID(uuid string) bool {
	return uuid == ServiceUUIDCyclingSpeedCadence
}
