package bt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/events"
	"github.com/lowaak/smart-trainer/csc-monitor/internal/go_func_utils"

	"tinygo.org/x/bluetooth"
)

// ConnectionChange is emitted when the adapter reports a device connecting or disconnecting
type ConnectionChange struct {
	Address   string
	Connected bool
}

// BTManagerInterface defines the interface for Bluetooth manager implementations
type BTManagerInterface interface {
	Enable() error
	GetBTDeviceByAddressString(addressString string) BTDevice
	StartScan(serviceUuidFilter []string)
	StopScan() error
	IsScanning() bool
	Connect(device BTDevice) error
	Disconnect(device BTDevice) error
	GetScanDevices() []BTDevice
	ListenToDeviceList(ch chan<- []BTDevice) func()
	ListenToConnectionChanges(callback func(ConnectionChange)) func()
	Shutdown()
}

var _ BTManagerInterface = (*BTManager)(nil)

type BTManager struct {
	adapter             *bluetooth.Adapter
	devicesByAddress    map[string]*btDeviceImpl
	mu                  sync.RWMutex
	scanning            bool
	scanTimeout         time.Duration
	scanContextCancel   context.CancelFunc
	scanDeviceListEvent *events.ChannelEvent[[]BTDevice]
	connectionEvent     *events.CallbackEvent[ConnectionChange]
	ctx                 context.Context
	cancel              context.CancelFunc
	wg                  sync.WaitGroup
	logger              *log.Logger
}

func NewBTManager(adapter *bluetooth.Adapter, logger *log.Logger, scanTimeout time.Duration) *BTManager {
	if adapter == nil {
		panic("BTManager: adapter cannot be nil")
	}
	if logger == nil {
		panic("BTManager: logger cannot be nil")
	}
	if scanTimeout <= 0 {
		scanTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BTManager{
		adapter:             adapter,
		devicesByAddress:    make(map[string]*btDeviceImpl),
		scanTimeout:         scanTimeout,
		scanDeviceListEvent: events.NewChannelEvent[[]BTDevice](true),
		connectionEvent:     events.NewCallbackEvent[ConnectionChange](false),
		ctx:                 ctx,
		cancel:              cancel,
		logger:              logger,
	}
}

// GetBTDeviceByAddressString returns a BTDevice by its address string, or nil if not found
func (m *BTManager) GetBTDeviceByAddressString(addressString string) BTDevice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if device, ok := m.devicesByAddress[addressString]; ok {
		return device
	}
	return nil
}

func (m *BTManager) getOrCreateDevice(address bluetooth.Address) (*btDeviceImpl, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addressStr := address.String()
	if device, ok := m.devicesByAddress[addressStr]; ok {
		return device, false
	}
	device := newBtDeviceImpl(m.logger, address, m.scanTimeout)
	m.devicesByAddress[addressStr] = device
	return device, true
}

func (m *BTManager) Enable() error {
	m.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		addressStr := device.Address.String()
		d, _ := m.getOrCreateDevice(device.Address)
		if connected {
			m.logger.Printf("Device connected: %s", addressStr)
			d.setConnectedDevice(&device)
		} else {
			m.logger.Printf("Device disconnected: %s", addressStr)
			d.setConnectedDevice(nil)
		}
		m.connectionEvent.Notify(ConnectionChange{Address: addressStr, Connected: connected})
	})
	return m.adapter.Enable()
}

// StartScan scans for devices advertising any of serviceUuidFilter, all devices when empty.
// A running scan is replaced.
func (m *BTManager) StartScan(serviceUuidFilter []string) {
	filterSet := make(map[string]struct{}, len(serviceUuidFilter))
	for _, filter := range serviceUuidFilter {
		filterSet[filter] = struct{}{}
	}

	m.mu.Lock()
	if m.scanning && m.scanContextCancel != nil {
		m.logger.Printf("A scan is already running, restarting it")
		m.scanContextCancel()
	}
	m.scanning = true
	scanCtx, scanCancel := context.WithCancel(m.ctx)
	m.scanContextCancel = scanCancel
	m.mu.Unlock()

	m.logger.Printf("Starting scan with filter %v", serviceUuidFilter)

	go_func_utils.SafeGoTracked(m.logger, &m.wg, func() {
		m.cleanupStaleDevices(scanCtx)
	})

	go_func_utils.SafeGoTracked(m.logger, &m.wg, func() {
		defer m.logger.Printf("exiting scan handling loop")
		err := m.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if scanCtx.Err() != nil {
				// still need StopScan on the adapter
				return
			}
			if len(filterSet) > 0 && !matchesFilter(result.ServiceUUIDs(), filterSet) {
				return
			}
			d, isNew := m.getOrCreateDevice(result.Address)
			d.setScanResult(&result, time.Now())
			if isNew {
				d.setServiceUUIDs(result.ServiceUUIDs())
				m.logger.Printf("Found device: %s (%s) [RSSI: %d]", d.GetLocalName(), result.Address.String(), result.RSSI)
			}
		})
		if err != nil {
			m.logger.Printf("Scan error: %v", err)
		}
	})

	// Emit current scan results every second
	go_func_utils.SafeGoTracked(m.logger, &m.wg, func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-scanCtx.Done():
				return
			case <-ticker.C:
				m.scanDeviceListEvent.Notify(m.GetScanDevices())
			}
		}
	})
}

func matchesFilter(uuids []bluetooth.UUID, filterSet map[string]struct{}) bool {
	for _, uuid := range uuids {
		if _, ok := filterSet[uuid.String()]; ok {
			return true
		}
	}
	return false
}

func (m *BTManager) cleanupStaleDevices(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			var removed []string
			m.mu.Lock()
			for address, device := range m.devicesByAddress {
				if !device.IsConnected() && now.Sub(device.GetScanLastSeen()) > m.scanTimeout {
					delete(m.devicesByAddress, address)
					removed = append(removed, address)
				}
			}
			m.mu.Unlock()
			for _, address := range removed {
				m.logger.Printf("Device timeout: %s (not seen for %v)", address, m.scanTimeout)
			}
		}
	}
}

func (m *BTManager) StopScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanning = false
	if m.scanContextCancel != nil {
		m.scanContextCancel()
		m.scanContextCancel = nil
	}
	return m.adapter.StopScan()
}

func (m *BTManager) IsScanning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanning
}

// Connect initiates a connection. Completion is reported through the
// adapter connect handler, see ListenToConnectionChanges.
func (m *BTManager) Connect(device BTDevice) error {
	addressStr := device.GetAddressString()
	m.mu.RLock()
	impl, ok := m.devicesByAddress[addressStr]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("could not find device %s", addressStr)
	}

	m.logger.Printf("BTManager: Connecting to %s", addressStr)
	impl.setState(Connecting)
	if _, err := m.adapter.Connect(impl.address, bluetooth.ConnectionParams{}); err != nil {
		impl.setState(Disconnected)
		return fmt.Errorf("connect %s: %w", addressStr, err)
	}
	return nil
}

func (m *BTManager) Disconnect(device BTDevice) error {
	addressStr := device.GetAddressString()
	m.mu.RLock()
	impl, ok := m.devicesByAddress[addressStr]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("could not find device %s", addressStr)
	}
	connected := impl.getConnectedDevice()
	if connected == nil {
		m.logger.Printf("BTManager: %s is not connected", addressStr)
		return nil
	}
	m.logger.Printf("BTManager: Disconnecting from %s", addressStr)
	return connected.Disconnect()
}

// GetScanDevices returns devices seen within the scan timeout
func (m *BTManager) GetScanDevices() []BTDevice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]BTDevice, 0, len(m.devicesByAddress))
	for _, device := range m.devicesByAddress {
		if device.IsRecentlyScanned() {
			result = append(result, device)
		}
	}
	return result
}

// ListenToDeviceList registers a channel to receive the scan device list about once per second
func (m *BTManager) ListenToDeviceList(ch chan<- []BTDevice) func() {
	return m.scanDeviceListEvent.Listen(ch)
}

// ListenToConnectionChanges registers a callback for connects and disconnects
func (m *BTManager) ListenToConnectionChanges(callback func(ConnectionChange)) func() {
	return m.connectionEvent.Listen(callback)
}

// Shutdown disconnects all devices, stops scanning and waits for goroutines
func (m *BTManager) Shutdown() {
	m.logger.Println("BTManager: Shutting down")
	m.mu.RLock()
	devices := make([]*btDeviceImpl, 0, len(m.devicesByAddress))
	for _, device := range m.devicesByAddress {
		devices = append(devices, device)
	}
	m.mu.RUnlock()

	for _, device := range devices {
		if !device.IsConnected() {
			continue
		}
		if err := m.Disconnect(device); err != nil {
			m.logger.Printf("Error disconnecting from %v: %v", device.GetAddressString(), err)
		}
	}
	if err := m.StopScan(); err != nil {
		m.logger.Printf("BTManager: Error stopping scan: %v", err)
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Println("BTManager: Shutdown complete")
}
