package csc

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/events"
	"github.com/lowaak/smart-trainer/csc-monitor/internal/sensor"
	"github.com/lowaak/smart-trainer/csc-monitor/internal/units"
)

// Options configures a Decoder
type Options struct {
	WheelCircumferenceMM int
	// WheelAsCadence lists sensor addresses that report crank data in the
	// wheel fields of the measurement
	WheelAsCadence []string
	// StaleAfter is how long a member may go without a counter change before
	// its cadence or speed is reported as zero. Zero disables aging.
	StaleAfter time.Duration
}

// Update is the state of one sensor after a notification was applied
type Update struct {
	Address    string
	Name       string
	HasCadence bool
	CadenceRPM float64
	HasSpeed   bool
	Speed      sensor.SpeedData
	// Diagnostics holds the readings rejected for this notification, each
	// wrapping sensor.ErrInvalidTimeDelta
	Diagnostics []error
}

type sensorState struct {
	readings       *sensor.CadenceAndSpeed
	cadenceChanged time.Time
	speedChanged   time.Time
}

// Decoder keeps the most recent readings of every sensor and derives new
// values from each notification against them.
type Decoder struct {
	logger               *log.Logger
	wheelCircumferenceMM int
	wheelAsCadence       map[string]bool
	staleAfter           time.Duration
	now                  func() time.Time

	mu     sync.Mutex
	latest map[string]*sensorState

	updateEvent *events.CallbackEvent[Update]
}

func NewDecoder(logger *log.Logger, options Options) *Decoder {
	if logger == nil {
		panic("Decoder: logger cannot be nil")
	}
	if options.WheelCircumferenceMM <= 0 {
		panic("Decoder: wheel circumference must be > 0")
	}
	wheelAsCadence := make(map[string]bool, len(options.WheelAsCadence))
	for _, address := range options.WheelAsCadence {
		wheelAsCadence[address] = true
	}
	return &Decoder{
		logger:               logger,
		wheelCircumferenceMM: options.WheelCircumferenceMM,
		wheelAsCadence:       wheelAsCadence,
		staleAfter:           options.StaleAfter,
		now:                  time.Now,
		latest:               make(map[string]*sensorState),
		updateEvent:          events.NewCallbackEvent[Update](false),
	}
}

// HandleNotification applies a raw CSC Measurement payload from a sensor.
// Notifications of one sensor must be applied in arrival order.
// An error is returned only when the payload cannot be parsed.
func (d *Decoder) HandleNotification(address, name string, payload []byte) (Update, error) {
	measurement, err := ParseMeasurement(payload)
	if err != nil {
		d.logger.Printf("Decoder: [%s] parse error: %v (raw: %v)", address, err, payload)
		return Update{}, fmt.Errorf("sensor %s: %w", address, err)
	}

	d.mu.Lock()
	now := d.now()
	state, ok := d.latest[address]
	if !ok {
		state = &sensorState{cadenceChanged: now, speedChanged: now}
		d.latest[address] = state
	}
	previous := state.readings

	cadence, distanceSpeed := measurement.Readings(address, name)
	if measurement.HasCrankData {
		revolutions := extendCrankRevolutions(measurement.CrankRevolutions, previous.Cadence())
		cadence = sensor.NewCadence(address, name, revolutions, measurement.LastCrankEventTime)
	}
	if d.wheelAsCadence[address] && !cadence.HasData() && distanceSpeed.HasData() {
		cadence = sensor.CadenceFromWheelData(distanceSpeed)
		distanceSpeed = sensor.NewDistanceSpeedWithoutData(address)
	}

	var diagnostics []error

	nextCadence := previous.Cadence()
	if cadence.HasData() && !cadence.Equal(nextCadence) {
		if err := cadence.Compute(nextCadence); err != nil {
			diagnostics = append(diagnostics, err)
		} else {
			nextCadence = cadence
			state.cadenceChanged = now
		}
	}

	nextDistanceSpeed := previous.DistanceSpeed()
	if distanceSpeed.HasData() && !distanceSpeed.Equal(nextDistanceSpeed) {
		// a rejected reading keeps the previous one so the odometer is not restarted
		if err := distanceSpeed.Compute(nextDistanceSpeed, d.wheelCircumferenceMM); err != nil {
			diagnostics = append(diagnostics, err)
		} else {
			nextDistanceSpeed = distanceSpeed
			state.speedChanged = now
		}
	}

	state.readings = sensor.NewCadenceAndSpeed(address, name, nextCadence, nextDistanceSpeed)
	update := d.newUpdate(state, now)
	d.mu.Unlock()

	update.Diagnostics = diagnostics
	for _, diagnostic := range diagnostics {
		d.logger.Printf("Decoder: [%s] %v", address, diagnostic)
	}

	d.updateEvent.Notify(update)
	return update, nil
}

// extendCrankRevolutions continues the running count of previous with the
// forward step of the 16-bit wire counter, so a wire rollover stays a
// small step on the 32-bit count.
func extendCrankRevolutions(wire uint16, previous *sensor.Cadence) uint32 {
	if previous == nil || !previous.HasData() {
		return uint32(wire)
	}
	last := previous.CrankRevolutions()
	step := sensor.Diff(int64(wire), int64(uint16(last)), sensor.Uint16Max)
	return last + uint32(step)
}

// newUpdate must be called with d.mu held
func (d *Decoder) newUpdate(state *sensorState, now time.Time) Update {
	readings := state.readings
	update := Update{
		Address: readings.SensorAddress(),
		Name:    readings.SensorName(),
	}
	if cadence := readings.Cadence(); cadence != nil {
		update.CadenceRPM, update.HasCadence = cadence.Value()
		if update.HasCadence && d.isStale(state.cadenceChanged, now) {
			update.CadenceRPM = 0
		}
	}
	if distanceSpeed := readings.DistanceSpeed(); distanceSpeed != nil {
		update.Speed, update.HasSpeed = distanceSpeed.Value()
		if update.HasSpeed && d.isStale(state.speedChanged, now) {
			update.Speed.Speed = units.Speed(0)
		}
	}
	return update
}

func (d *Decoder) isStale(changed, now time.Time) bool {
	return d.staleAfter > 0 && now.Sub(changed) > d.staleAfter
}

// ResetLap zeroes the odometer of every sensor, keeping the last distance and speed
func (d *Decoder) ResetLap() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for address, state := range d.latest {
		if distanceSpeed := state.readings.DistanceSpeed(); distanceSpeed != nil {
			distanceSpeed.Reset()
			d.logger.Printf("Decoder: [%s] lap reset", address)
		}
	}
}

// Latest returns the current state of a sensor, aged to the current time
func (d *Decoder) Latest(address string) (Update, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.latest[address]
	if !ok {
		return Update{}, false
	}
	return d.newUpdate(state, d.now()), true
}

// Forget drops the readings of a sensor, e.g. after it disconnected.
// The next notification of that sensor starts a new odometer.
func (d *Decoder) Forget(address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.latest, address)
}

// Sensors returns the addresses of all sensors with readings, sorted
func (d *Decoder) Sensors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	addresses := make([]string, 0, len(d.latest))
	for address := range d.latest {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

// ListenToUpdates registers a callback called after every applied notification.
// Returns a deregistration function.
func (d *Decoder) ListenToUpdates(callback func(Update)) func() {
	return d.updateEvent.Listen(callback)
}

// HasInvalidTimeDelta reports whether any reading of the update was rejected
func (u Update) HasInvalidTimeDelta() bool {
	for _, diagnostic := range u.Diagnostics {
		if errors.Is(diagnostic, sensor.ErrInvalidTimeDelta) {
			return true
		}
	}
	return false
}
