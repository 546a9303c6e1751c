package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the settings of the CSC monitor
type Config struct {
	// WheelCircumferenceMM converts wheel revolutions to distance
	WheelCircumferenceMM int `mapstructure:"wheel_circumference_mm"`
	// Device is the address of the sensor to monitor
	Device string `mapstructure:"device"`
	// WheelAsCadence lists sensors reporting crank data in the wheel fields
	WheelAsCadence []string      `mapstructure:"wheel_as_cadence"`
	ScanTimeout    time.Duration `mapstructure:"scan_timeout"`
	// StaleAfter reports cadence and speed as zero once the counters stop
	// changing for this long, 0 disables
	StaleAfter time.Duration `mapstructure:"stale_after"`

	Simulate      bool    `mapstructure:"simulate"`
	SimCadenceRPM float64 `mapstructure:"sim_cadence_rpm"`
	SimSpeedKMH   float64 `mapstructure:"sim_speed_kmh"`

	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

const envPrefix = "CSC"

// DefaultConfigFile returns ~/.csc-monitor/config.yaml
func DefaultConfigFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".csc-monitor", "config.yaml")
}

func defaultLogFile() string {
	return filepath.Join(filepath.Dir(DefaultConfigFile()), "csc-monitor.log")
}

// BindFlags registers the configuration flags on fs
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default "+DefaultConfigFile()+" when present)")
	fs.Int("wheel-circumference-mm", 2096, "wheel circumference in millimeters")
	fs.String("device", "", "address of the CSC sensor")
	fs.StringSlice("wheel-as-cadence", nil, "sensor addresses that report cadence in the wheel fields")
	fs.Duration("scan-timeout", 10*time.Second, "forget scanned devices not seen for this long")
	fs.Duration("stale-after", 3*time.Second, "show zero cadence and speed after the counters stop for this long (0 disables)")
	fs.Bool("simulate", false, "use a simulated sensor instead of Bluetooth")
	fs.Float64("sim-cadence-rpm", 85, "cadence of the simulated sensor")
	fs.Float64("sim-speed-kmh", 30, "speed of the simulated sensor")
	fs.String("log-file", defaultLogFile(), "log file")
	fs.Int("log-max-size-mb", 10, "rotate the log file at this size")
	fs.Int("log-max-backups", 3, "number of rotated log files to keep")
}

// Load resolves the configuration from flags, CSC_ environment variables,
// the config file and defaults, in that order of precedence.
func Load(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return Config{}, bindErr
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configFile, _ := fs.GetString("config")
	explicit := configFile != ""
	if !explicit {
		configFile = DefaultConfigFile()
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if explicit || !missing {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the decoder cannot work with
func (c Config) Validate() error {
	if c.WheelCircumferenceMM <= 0 {
		return fmt.Errorf("%w: wheel_circumference_mm must be > 0, got %d", ErrInvalidConfig, c.WheelCircumferenceMM)
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("%w: scan_timeout must be > 0, got %v", ErrInvalidConfig, c.ScanTimeout)
	}
	if c.StaleAfter < 0 {
		return fmt.Errorf("%w: stale_after must not be negative, got %v", ErrInvalidConfig, c.StaleAfter)
	}
	if c.Simulate && (c.SimCadenceRPM < 0 || c.SimSpeedKMH < 0) {
		return fmt.Errorf("%w: simulated cadence and speed must not be negative", ErrInvalidConfig)
	}
	return nil
}
