package bt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/safe_map"
	"tinygo.org/x/bluetooth"
)

type BTDeviceState int

const (
	Disconnected BTDeviceState = iota // 0
	Connecting                        // 1
	Connected                         // 2
)

func (s BTDeviceState) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	default:
		return "Unknown"
	}
}

// BTDevice is a BLE peripheral that can deliver characteristic notifications
type BTDevice interface {
	GetAddressString() string
	GetLocalName() string
	GetScanRSSI() (int16, error)
	GetScanLastSeen() time.Time
	IsConnected() bool
	GetState() BTDeviceState
	IsRecentlyScanned() bool
	WaitForConnection(ctx context.Context) error
	EnableNotifications(serviceUuid string, characteristicUuid string, callbackFunc func(buf []byte)) error
	DisableNotifications(serviceUuid string, characteristicUuid string) error
	ReadCharacteristic(serviceUuid string, characteristicUuid string) ([]byte, error)
	GetServiceUUIDs() []string
	HasServiceUUID(uuid string) bool
}

var ErrNotConnected = errors.New("no connected device")

type btDeviceImpl struct {
	address         bluetooth.Address
	scanTimeout     time.Duration
	logger          *log.Logger
	mu              sync.RWMutex
	bleMu           sync.Mutex // serializes characteristic operations
	scanLastSeen    time.Time
	scanResult      *bluetooth.ScanResult
	connectedDevice *bluetooth.Device // nil if not connected
	state           BTDeviceState
	serviceUuidStrs []string

	serviceByUuid          *safe_map.SafeMap[string, *bluetooth.DeviceService]
	characteristicByUuid   *safe_map.SafeMap[string, *bluetooth.DeviceCharacteristic]
	serviceCharsDiscovered *safe_map.SafeMap[string, bool]
	allServicesDiscovered  bool // guarded by mu
}

func newBtDeviceImpl(logger *log.Logger, address bluetooth.Address, scanTimeout time.Duration) *btDeviceImpl {
	if logger == nil {
		panic("logger must be non nil")
	}
	if scanTimeout <= 0 {
		panic("scanTimeout must be > 0")
	}
	return &btDeviceImpl{
		logger:                 logger,
		address:                address,
		scanTimeout:            scanTimeout,
		scanLastSeen:           time.Unix(0, 0),
		state:                  Disconnected,
		serviceByUuid:          safe_map.NewSafeMap[string, *bluetooth.DeviceService](),
		characteristicByUuid:   safe_map.NewSafeMap[string, *bluetooth.DeviceCharacteristic](),
		serviceCharsDiscovered: safe_map.NewSafeMap[string, bool](),
	}
}

func (b *btDeviceImpl) GetAddressString() string {
	return b.address.String()
}

func (b *btDeviceImpl) GetLocalName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.scanResult != nil {
		if name := b.scanResult.LocalName(); name != "" {
			return name
		}
	}
	return "Unknown"
}

func (b *btDeviceImpl) GetScanRSSI() (int16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.scanResult == nil {
		return 0, errors.New("no rssi available")
	}
	return b.scanResult.RSSI, nil
}

func (b *btDeviceImpl) GetScanLastSeen() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scanLastSeen
}

func (b *btDeviceImpl) GetServiceUUIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.serviceUuidStrs)
}

func (b *btDeviceImpl) HasServiceUUID(uuid string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Contains(b.serviceUuidStrs, uuid)
}

func (b *btDeviceImpl) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connectedDevice != nil
}

func (b *btDeviceImpl) GetState() BTDeviceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *btDeviceImpl) IsRecentlyScanned() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scanResult != nil && time.Since(b.scanLastSeen) <= b.scanTimeout
}

// WaitForConnection polls until the adapter reports the device connected or ctx ends
func (b *btDeviceImpl) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if b.IsConnected() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("waiting for connection to %s: %w", b.GetAddressString(), ctx.Err())
		}
	}
}

func (b *btDeviceImpl) EnableNotifications(serviceUuidStr string, characteristicUuidStr string, callbackFunc func(buf []byte)) error {
	b.bleMu.Lock()
	defer b.bleMu.Unlock()

	b.logger.Printf("BTDevice: EnableNotifications for service=%s char=%s", serviceUuidStr, characteristicUuidStr)
	characteristic, err := b.getDeviceCharacteristic(serviceUuidStr, characteristicUuidStr)
	if err != nil {
		return err
	}
	if err := characteristic.EnableNotifications(callbackFunc); err != nil {
		return fmt.Errorf("failed to enable notifications: %w", err)
	}
	b.logger.Printf("BTDevice: Notifications enabled for %s", characteristicUuidStr)
	return nil
}

func (b *btDeviceImpl) DisableNotifications(serviceUuidStr string, characteristicUuidStr string) error {
	b.bleMu.Lock()
	defer b.bleMu.Unlock()

	characteristic, err := b.getDeviceCharacteristic(serviceUuidStr, characteristicUuidStr)
	if err != nil {
		return err
	}
	// a nil callback disables notifications
	if err := characteristic.EnableNotifications(nil); err != nil {
		return fmt.Errorf("failed to disable notifications: %w", err)
	}
	b.logger.Printf("BTDevice: Notifications disabled for %s", characteristicUuidStr)
	return nil
}

func (b *btDeviceImpl) ReadCharacteristic(serviceUuidStr string, characteristicUuidStr string) ([]byte, error) {
	b.bleMu.Lock()
	defer b.bleMu.Unlock()

	characteristic, err := b.getDeviceCharacteristic(serviceUuidStr, characteristicUuidStr)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 512)
	n, err := characteristic.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic: %w", err)
	}
	return buf[:n], nil
}

func (b *btDeviceImpl) setScanResult(scanResult *bluetooth.ScanResult, seen time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanResult = scanResult
	b.scanLastSeen = seen
}

func (b *btDeviceImpl) setServiceUUIDs(serviceUuids []bluetooth.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serviceUuidStrs = make([]string, 0, len(serviceUuids))
	for _, uuid := range serviceUuids {
		b.serviceUuidStrs = append(b.serviceUuidStrs, uuid.String())
	}
}

func (b *btDeviceImpl) setConnectedDevice(device *bluetooth.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectedDevice = device
	if device != nil {
		b.state = Connected
		return
	}
	b.state = Disconnected
	// handles are only valid for one connection
	b.serviceByUuid.Clear()
	b.characteristicByUuid.Clear()
	b.serviceCharsDiscovered.Clear()
	b.allServicesDiscovered = false
}

func (b *btDeviceImpl) getConnectedDevice() *bluetooth.Device {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connectedDevice
}

func (b *btDeviceImpl) setState(state BTDeviceState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
}

func (b *btDeviceImpl) servicesDiscovered() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.allServicesDiscovered
}

// cacheServices stores services discovered on connection from. Nothing is
// stored when the device disconnected or reconnected since.
func (b *btDeviceImpl) cacheServices(from *bluetooth.Device, services []bluetooth.DeviceService) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from == nil || b.connectedDevice != from {
		return false
	}
	for i := range services {
		svc := &services[i]
		b.serviceByUuid.Store(svc.UUID().String(), svc)
	}
	b.allServicesDiscovered = true
	return true
}

// cacheCharacteristics is cacheServices for the characteristics of one service
func (b *btDeviceImpl) cacheCharacteristics(from *bluetooth.Device, serviceKey string, characteristics []bluetooth.DeviceCharacteristic) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from == nil || b.connectedDevice != from {
		return false
	}
	for i := range characteristics {
		char := &characteristics[i]
		b.characteristicByUuid.Store(serviceKey+"_"+char.UUID().String(), char)
	}
	b.serviceCharsDiscovered.Store(serviceKey, true)
	return true
}

func (b *btDeviceImpl) getDeviceService(serviceUuidStr string) (*bluetooth.DeviceService, error) {
	connectedDevice := b.getConnectedDevice()
	if connectedDevice == nil {
		return nil, ErrNotConnected
	}
	if service, ok := b.serviceByUuid.Load(serviceUuidStr); ok {
		return service, nil
	}

	// Discover all services at once, discovering a single service again
	// interrupts notifications of a service discovered earlier
	if !b.servicesDiscovered() {
		b.logger.Printf("BTDevice: Discovering all services for %s", b.GetAddressString())
		services, err := connectedDevice.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("error discovering services: %w", err)
		}
		if !b.cacheServices(connectedDevice, services) {
			return nil, ErrNotConnected
		}
		b.logger.Printf("BTDevice: %d services cached for %s", b.serviceByUuid.Len(), b.GetAddressString())
	}

	service, ok := b.serviceByUuid.Load(serviceUuidStr)
	if !ok {
		return nil, fmt.Errorf("service %v not found on device", serviceUuidStr)
	}
	return service, nil
}

func (b *btDeviceImpl) getDeviceCharacteristic(serviceUuidStr, charUuidStr string) (*bluetooth.DeviceCharacteristic, error) {
	serviceUuid, err := bluetooth.ParseUUID(serviceUuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", serviceUuidStr, err)
	}
	charUuid, err := bluetooth.ParseUUID(charUuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", charUuidStr, err)
	}
	serviceKey := serviceUuid.String()
	charKey := serviceKey + "_" + charUuid.String()

	if characteristic, ok := b.characteristicByUuid.Load(charKey); ok {
		return characteristic, nil
	}

	if discovered, _ := b.serviceCharsDiscovered.Load(serviceKey); !discovered {
		connectedDevice := b.getConnectedDevice()
		service, err := b.getDeviceService(serviceKey)
		if err != nil {
			return nil, err
		}
		b.logger.Printf("BTDevice: Discovering all characteristics for service %s", serviceKey)
		characteristics, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("could not discover characteristics for service %v: %w", serviceKey, err)
		}
		if !b.cacheCharacteristics(connectedDevice, serviceKey, characteristics) {
			return nil, ErrNotConnected
		}
	}

	characteristic, ok := b.characteristicByUuid.Load(charKey)
	if !ok {
		return nil, fmt.Errorf("characteristic %v not found in service %v", charUuidStr, serviceUuidStr)
	}
	return characteristic, nil
}
