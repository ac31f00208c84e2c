// Package config handles configuration loading, validation, and management for ddcrelight.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete ddcrelight configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// History configuration for the learned brightness curve.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Sensor configuration for ambient light readings.
	Sensor SensorConfig `toml:"sensor" json:"sensor" yaml:"sensor"`

	// Monitors configuration for brightness control.
	Monitors MonitorsConfig `toml:"monitors" json:"monitors" yaml:"monitors"`

	// Daemon configuration for the polling loop.
	Daemon DaemonConfig `toml:"daemon" json:"daemon" yaml:"daemon"`

	// Journal configuration for the observation log.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// HistoryConfig holds history store configuration.
type HistoryConfig struct {
	// Path is the path to the history document.
	Path string `toml:"path" json:"path" yaml:"path"`

	// PromotionMinutes is how long the newest history must go untouched
	// before it becomes the stable history.
	PromotionMinutes int `toml:"promotion_minutes" json:"promotion_minutes" yaml:"promotion_minutes"`
}

// SensorConfig holds ambient light sensor configuration.
type SensorConfig struct {
	// Backend is the sensor backend: "iio", "serial", or "sysfs".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// Samples is the number of readings taken per measurement; the median wins.
	Samples int `toml:"samples" json:"samples" yaml:"samples"`

	// SampleIntervalMs is the delay between readings of one measurement.
	SampleIntervalMs int `toml:"sample_interval_ms" json:"sample_interval_ms" yaml:"sample_interval_ms"`

	// Serial port configuration (backend "serial").
	Serial SerialConfig `toml:"serial" json:"serial" yaml:"serial"`

	// SysfsDevice is the IIO device directory (backend "sysfs").
	SysfsDevice string `toml:"sysfs_device" json:"sysfs_device" yaml:"sysfs_device"`
}

// SerialConfig holds serial light sensor configuration.
type SerialConfig struct {
	// Port is the serial device path.
	Port string `toml:"port" json:"port" yaml:"port"`

	// BaudRate is the line speed.
	BaudRate int `toml:"baud_rate" json:"baud_rate" yaml:"baud_rate"`

	// DataBits is the number of data bits (5-8).
	DataBits int `toml:"data_bits" json:"data_bits" yaml:"data_bits"`

	// StopBits is 1 or 2.
	StopBits int `toml:"stop_bits" json:"stop_bits" yaml:"stop_bits"`

	// Parity is "N", "E", or "O".
	Parity string `toml:"parity" json:"parity" yaml:"parity"`

	// ReadTimeoutMs bounds how long one reading may take.
	ReadTimeoutMs int `toml:"read_timeout_ms" json:"read_timeout_ms" yaml:"read_timeout_ms"`
}

// MonitorsConfig holds monitor control configuration.
type MonitorsConfig struct {
	// Backend is the control backend: "ddcutil" or "backlight".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// DdcutilPath is the ddcutil binary.
	DdcutilPath string `toml:"ddcutil_path" json:"ddcutil_path" yaml:"ddcutil_path"`

	// Displays is a fixed list of ddcutil display numbers.
	// If empty, displays are detected.
	Displays []int `toml:"displays" json:"displays" yaml:"displays"`

	// TimeoutSec bounds each command sent to a monitor.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`

	// BacklightDir is the sysfs backlight class directory (backend "backlight").
	BacklightDir string `toml:"backlight_dir" json:"backlight_dir" yaml:"backlight_dir"`
}

// DaemonConfig holds polling loop configuration.
type DaemonConfig struct {
	// IdleIntervalMs is the wait after a pass that changed nothing.
	IdleIntervalMs int `toml:"idle_interval_ms" json:"idle_interval_ms" yaml:"idle_interval_ms"`

	// BackoffInitialMs is the first wait after a failed pass.
	BackoffInitialMs int `toml:"backoff_initial_ms" json:"backoff_initial_ms" yaml:"backoff_initial_ms"`

	// BackoffMaxSec caps the wait after repeated failures.
	BackoffMaxSec int `toml:"backoff_max_sec" json:"backoff_max_sec" yaml:"backoff_max_sec"`

	// WatchConfig reloads the configuration file when it changes.
	WatchConfig bool `toml:"watch_config" json:"watch_config" yaml:"watch_config"`
}

// JournalConfig holds observation journal configuration.
type JournalConfig struct {
	// Enabled determines whether recorded observations are journaled.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the journal database.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := ConfigDir()

	return &Config{
		Version: Version,
		History: HistoryConfig{
			Path:             filepath.Join(dir, "history.json"),
			PromotionMinutes: 15,
		},
		Sensor: SensorConfig{
			Backend:          "iio",
			Samples:          5,
			SampleIntervalMs: 200,
			Serial: SerialConfig{
				Port:          "/dev/ttyUSB0",
				BaudRate:      9600,
				DataBits:      8,
				StopBits:      1,
				Parity:        "N",
				ReadTimeoutMs: 2000,
			},
			SysfsDevice: "/sys/bus/iio/devices/iio:device0",
		},
		Monitors: MonitorsConfig{
			Backend:      "ddcutil",
			DdcutilPath:  "ddcutil",
			Displays:     []int{},
			TimeoutSec:   10,
			BacklightDir: "/sys/class/backlight",
		},
		Daemon: DaemonConfig{
			IdleIntervalMs:   5000,
			BackoffInitialMs: 1000,
			BackoffMaxSec:    60,
			WatchConfig:      true,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "journal.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(StateDir(), "ddcrelight.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// ConfigDir returns ${XDG_CONFIG_HOME:-$HOME/.config}/ddcrelight.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ddcrelight")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ddcrelight")
}

// StateDir returns ${XDG_STATE_HOME:-$HOME/.local/state}/ddcrelight.
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ddcrelight")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "ddcrelight")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with DDCRELIGHT_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("DDCRELIGHT_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("DDCRELIGHT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DDCRELIGHT_SENSOR_BACKEND"); v != "" {
		c.Sensor.Backend = v
	}
	if v := os.Getenv("DDCRELIGHT_SERIAL_PORT"); v != "" {
		c.Sensor.Serial.Port = v
	}
	if v := os.Getenv("DDCRELIGHT_MONITOR_BACKEND"); v != "" {
		c.Monitors.Backend = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:  c.Version,
		History:  c.History,
		Sensor:   c.Sensor,
		Monitors: c.Monitors,
		Daemon:   c.Daemon,
		Journal:  c.Journal,
		Logging:  c.Logging,
	}
	clone.Monitors.Displays = append([]int{}, c.Monitors.Displays...)
	return clone
}

// PromotionWindow returns the history promotion window.
func (c *Config) PromotionWindow() time.Duration {
	return time.Duration(c.History.PromotionMinutes) * time.Minute
}

// IdleInterval returns the daemon idle wait.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Daemon.IdleIntervalMs) * time.Millisecond
}

// MonitorTimeout returns the per-command monitor timeout.
func (c *Config) MonitorTimeout() time.Duration {
	return c.Monitors.Timeout()
}

// Timeout returns the bound on each command sent to a monitor.
func (m MonitorsConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSec) * time.Second
}

// SaveConfig writes cfg to path in the format implied by its extension.
func SaveConfig(cfg *Config, path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".json":
		data, err = encodeJSON(cfg)
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = encodeTOML(cfg)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func encodeJSON(cfg *Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

func encodeTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# ddcrelight configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
