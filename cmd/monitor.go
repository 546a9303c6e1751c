package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lowaak/smart-trainer/csc-monitor/internal/bt"
	"github.com/lowaak/smart-trainer/csc-monitor/internal/config"
	"github.com/lowaak/smart-trainer/csc-monitor/internal/csc"
	"github.com/lowaak/smart-trainer/csc-monitor/internal/go_func_utils"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"
)

const (
	simulatedAddress   = "SIM:00:00:00:00:01"
	connectTimeout     = 10 * time.Second
	simulationInterval = time.Second
)

func (a *app) monitorCmd() *cobra.Command {
	var findTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show live cadence, speed and distance of a sensor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Simulate && a.cfg.Device == "" {
				return fmt.Errorf("--device is required unless --simulate is set")
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			decoder := csc.NewDecoder(a.logger, csc.Options{
				WheelCircumferenceMM: a.cfg.WheelCircumferenceMM,
				WheelAsCadence:       a.cfg.WheelAsCadence,
				StaleAfter:           a.cfg.StaleAfter,
			})

			if a.cfg.Simulate {
				sim, err := a.startSimulation(ctx, decoder)
				if err != nil {
					return err
				}
				return a.runDashboard(decoder, sim.GetAddressString(), sim)
			}

			manager := bt.NewBTManager(bluetooth.DefaultAdapter, a.logger, a.cfg.ScanTimeout)
			if err := manager.Enable(); err != nil {
				return fmt.Errorf("enable BLE stack: %w", err)
			}
			defer manager.Shutdown()

			device, err := a.connectSensor(ctx, manager, findTimeout)
			if err != nil {
				return err
			}
			address := device.GetAddressString()
			unregister := manager.ListenToConnectionChanges(func(change bt.ConnectionChange) {
				if change.Address == address && !change.Connected {
					a.logger.Printf("Sensor %s disconnected, dropping its readings", address)
					decoder.Forget(address)
				}
			})
			defer unregister()
			if err := csc.Subscribe(device, decoder); err != nil {
				return err
			}
			return a.runDashboard(decoder, address, nil)
		},
	}
	cmd.Flags().DurationVar(&findTimeout, "find-timeout", 30*time.Second, "how long to scan for the sensor")
	return cmd
}

// simulatedSensorConfig builds the simulator settings. Listing the simulated
// address in wheel_as_cadence makes the simulator send cadence as wheel data.
func simulatedSensorConfig(cfg config.Config) csc.SimulatedSensorConfig {
	return csc.SimulatedSensorConfig{
		Address:              simulatedAddress,
		LocalName:            "Simulated CSC",
		CadenceRPM:           cfg.SimCadenceRPM,
		SpeedKMH:             cfg.SimSpeedKMH,
		WheelCircumferenceMM: cfg.WheelCircumferenceMM,
		WheelAsCadence:       slices.Contains(cfg.WheelAsCadence, simulatedAddress),
	}
}

func (a *app) startSimulation(ctx context.Context, decoder *csc.Decoder) (*csc.SimulatedSensor, error) {
	sim := csc.NewSimulatedSensor(a.logger, simulatedSensorConfig(a.cfg))
	sim.Connect()
	if err := csc.Subscribe(sim, decoder); err != nil {
		return nil, fmt.Errorf("subscribe to simulated sensor: %w", err)
	}
	go_func_utils.SafeGo(a.logger, func() {
		sim.Run(ctx, simulationInterval)
	})
	return sim, nil
}

// connectSensor scans until the configured sensor shows up, then connects to it
func (a *app) connectSensor(ctx context.Context, manager *bt.BTManager, findTimeout time.Duration) (bt.BTDevice, error) {
	findCtx, cancel := context.WithTimeout(ctx, findTimeout)
	defer cancel()

	fmt.Printf("Looking for %s...\n", a.cfg.Device)
	manager.StartScan([]string{csc.ServiceUUIDCyclingSpeedCadence})

	var device bt.BTDevice
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for device == nil {
		select {
		case <-findCtx.Done():
			_ = manager.StopScan()
			return nil, fmt.Errorf("sensor %s not found: %w", a.cfg.Device, findCtx.Err())
		case <-ticker.C:
			device = manager.GetBTDeviceByAddressString(a.cfg.Device)
		}
	}
	if err := manager.StopScan(); err != nil {
		a.logger.Printf("Error stopping scan: %v", err)
	}

	if err := manager.Connect(device); err != nil {
		return nil, err
	}
	connectCtx, cancelConnect := context.WithTimeout(ctx, connectTimeout)
	defer cancelConnect()
	if err := device.WaitForConnection(connectCtx); err != nil {
		return nil, err
	}

	if feature, err := csc.ReadFeature(device); err != nil {
		a.logger.Printf("Could not read CSC feature: %v", err)
	} else {
		a.logger.Printf("Sensor %s supports %v", device.GetAddressString(), feature)
	}
	return device, nil
}

// runDashboard shows the sensor until Esc is pressed. With a simulated
// sensor, 's' stops and restarts pedalling.
func (a *app) runDashboard(decoder *csc.Decoder, address string, sim *csc.SimulatedSensor) error {
	ui := tview.NewApplication()

	metricsView := tview.NewTextView().SetDynamicColors(true)
	metricsView.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", address))

	help := "[yellow]l[-] lap reset   [yellow]Esc[-] quit"
	if sim != nil {
		help = "[yellow]s[-] stop/pedal   " + help
	}
	helpView := tview.NewTextView().
		SetDynamicColors(true).
		SetText(help)

	rejected := 0
	render := func(update csc.Update) {
		metricsView.SetText(formatDashboard(update, rejected))
	}
	render(csc.Update{Address: address})

	unregister := decoder.ListenToUpdates(func(update csc.Update) {
		if update.Address != address {
			return
		}
		ui.QueueUpdateDraw(func() {
			if update.HasInvalidTimeDelta() {
				rejected++
			}
			render(update)
		})
	})
	defer unregister()

	// a sensor that went silent sends no updates, age its values here
	done := make(chan struct{})
	defer close(done)
	go_func_utils.SafeGo(a.logger, func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if latest, ok := decoder.Latest(address); ok {
					ui.QueueUpdateDraw(func() { render(latest) })
				}
			}
		}
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(metricsView, 0, 1, false).
		AddItem(helpView, 1, 0, false)

	pedalling := true
	var cadenceRPM, speedKMH float64
	if sim != nil {
		cadenceRPM, speedKMH = sim.Targets()
	}
	ui.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape:
			ui.Stop()
			return nil
		case event.Rune() == 'l':
			decoder.ResetLap()
			if latest, ok := decoder.Latest(address); ok {
				render(latest)
			}
			return nil
		case event.Rune() == 's' && sim != nil:
			pedalling = !pedalling
			if pedalling {
				sim.SetTargets(cadenceRPM, speedKMH)
			} else {
				sim.SetTargets(0, 0)
			}
			return nil
		}
		return event
	})

	return ui.SetRoot(flex, true).Run()
}

func formatDashboard(update csc.Update, rejected int) string {
	cadence, speed, distance, lap := "--", "--", "--", "--"
	if update.HasCadence {
		cadence = fmt.Sprintf("%.0f rpm", update.CadenceRPM)
	}
	if update.HasSpeed {
		speed = fmt.Sprintf("%.1f km/h", update.Speed.Speed.ToKMH())
		distance = fmt.Sprintf("%.2f m", update.Speed.Distance.ToM())
		lap = fmt.Sprintf("%.3f km", update.Speed.DistanceOverall.ToKM())
	}
	return fmt.Sprintf(
		"\n  [green]Cadence[-]        %s\n  [green]Speed[-]          %s\n  [green]Last distance[-]  %s\n  [green]Lap distance[-]   %s\n\n  [gray]rejected samples: %d[-]",
		cadence, speed, distance, lap, rejected)
}
