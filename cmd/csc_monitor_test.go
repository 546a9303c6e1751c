package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ClosesLogOnCommandError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	logFile := filepath.Join(t.TempDir(), "csc-monitor.log")

	a := &app{}
	err := run(context.Background(), a, []string{"replay", "--log-file", logFile, filepath.Join(t.TempDir(), "missing.hex")})
	require.Error(t, err)
	assert.Nil(t, a.logCloser)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "csc-monitor replay")
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	a := &app{}
	err := run(context.Background(), a, []string{"replay", "--wheel-circumference-mm", "0", "-"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Nil(t, a.logCloser)
}

func TestMonitor_RequiresDevice(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	a := &app{}
	err := run(context.Background(), a, []string{"monitor", "--log-file", filepath.Join(t.TempDir(), "log")})
	assert.ErrorContains(t, err, "--device is required")
}

func TestSimulatedSensorConfig(t *testing.T) {
	cfg := config.Config{WheelCircumferenceMM: 2105, SimCadenceRPM: 90, SimSpeedKMH: 32}

	simCfg := simulatedSensorConfig(cfg)
	assert.Equal(t, simulatedAddress, simCfg.Address)
	assert.Equal(t, 2105, simCfg.WheelCircumferenceMM)
	assert.Equal(t, 90.0, simCfg.CadenceRPM)
	assert.Equal(t, 32.0, simCfg.SpeedKMH)
	assert.False(t, simCfg.WheelAsCadence)

	cfg.WheelAsCadence = []string{"F0:00:00:00:00:01", simulatedAddress}
	assert.True(t, simulatedSensorConfig(cfg).WheelAsCadence)
}
