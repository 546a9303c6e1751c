package csc

import (
	"fmt"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/bt"
)

// Subscribe enables CSC Measurement notifications on device and feeds them to decoder
func Subscribe(device bt.BTDevice, decoder *Decoder) error {
	if !device.HasServiceUUID(ServiceUUIDCyclingSpeedCadence) {
		return fmt.Errorf("device %s does not advertise the CSC service", device.GetAddressString())
	}
	address := device.GetAddressString()
	name := device.GetLocalName()
	err := device.EnableNotifications(ServiceUUIDCyclingSpeedCadence, CharUUIDCSCMeasurement, func(buf []byte) {
		// parse failures and diagnostics are logged by the decoder
		_, _ = decoder.HandleNotification(address, name, buf)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", address, err)
	}
	return nil
}

// Unsubscribe disables notifications and drops the readings of device
func Unsubscribe(device bt.BTDevice, decoder *Decoder) error {
	defer decoder.Forget(device.GetAddressString())
	if err := device.DisableNotifications(ServiceUUIDCyclingSpeedCadence, CharUUIDCSCMeasurement); err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", device.GetAddressString(), err)
	}
	return nil
}

// ReadFeature reads which data the sensor supports
func ReadFeature(device bt.BTDevice) (Feature, error) {
	buf, err := device.ReadCharacteristic(ServiceUUIDCyclingSpeedCadence, CharUUIDCSCFeature)
	if err != nil {
		return Feature{}, fmt.Errorf("read CSC feature of %s: %w", device.GetAddressString(), err)
	}
	return ParseFeature(buf)
}
