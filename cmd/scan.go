package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/bt"
	"github.com/lowaak/smart-trainer/csc-monitor/internal/csc"
	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"
)

func (a *app) scanCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List nearby sensors advertising the CSC service",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := bt.NewBTManager(bluetooth.DefaultAdapter, a.logger, a.cfg.ScanTimeout)
			if err := manager.Enable(); err != nil {
				return fmt.Errorf("enable BLE stack: %w", err)
			}
			defer manager.Shutdown()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanning for %v...\n", duration)

			deviceList := make(chan []bt.BTDevice, 1)
			unregister := manager.ListenToDeviceList(deviceList)
			defer unregister()
			manager.StartScan([]string{csc.ServiceUUIDCyclingSpeedCadence})

			var devices []bt.BTDevice
			deadline := time.After(duration)
			for done := false; !done; {
				select {
				case devices = <-deviceList:
				case <-deadline:
					done = true
				}
			}

			if len(devices) == 0 {
				fmt.Fprintln(out, "No CSC sensors found")
				return nil
			}
			sort.Slice(devices, func(i, j int) bool {
				return devices[i].GetAddressString() < devices[j].GetAddressString()
			})
			for _, device := range devices {
				fmt.Fprintln(out, formatDeviceName(device))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to scan")
	return cmd
}

func formatDeviceName(device bt.BTDevice) string {
	rssi, err := device.GetScanRSSI()
	if err != nil {
		return fmt.Sprintf("%s (%s)", device.GetLocalName(), device.GetAddressString())
	}
	return fmt.Sprintf("%s (%s) [RSSI: %d]", device.GetLocalName(), device.GetAddressString(), rssi)
}
