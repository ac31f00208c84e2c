// Package sensor reads ambient light levels.
//
// Three backends are provided: iio-sensor-proxy over the system D-Bus, a
// line-oriented serial device, and a raw IIO sysfs device. A Sampler wraps
// any of them and reports the median of several readings.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ddcrelight/internal/config"
	"ddcrelight/internal/timeutil"
)

var (
	// ErrSensor indicates a failed or invalid reading.
	ErrSensor = errors.New("sensor: reading failed")

	// ErrNoSensor indicates no ambient light sensor is available.
	ErrNoSensor = errors.New("sensor: no ambient light sensor found")
)

// LightSensor is a source of ambient light readings.
type LightSensor interface {
	// Init prepares the sensor for reading.
	Init(ctx context.Context) error

	// Value returns one light reading. Readings are never negative.
	Value(ctx context.Context) (float64, error)

	// Close releases the sensor.
	Close() error
}

// New builds the sensor described by cfg, wrapped in a Sampler.
func New(cfg config.SensorConfig, logger *slog.Logger) (LightSensor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var backend LightSensor
	switch cfg.Backend {
	case "iio":
		backend = NewIIO(logger)
	case "serial":
		opts := PortOptions{
			BaudRate: cfg.Serial.BaudRate,
			DataBits: cfg.Serial.DataBits,
			StopBits: cfg.Serial.StopBits,
			Parity:   cfg.Serial.Parity,
		}
		timeout := time.Duration(cfg.Serial.ReadTimeoutMs) * time.Millisecond
		backend = NewSerial(cfg.Serial.Port, opts, timeout)
	case "sysfs":
		backend = NewSysfs(cfg.SysfsDevice)
	default:
		return nil, fmt.Errorf("sensor: unknown backend %q", cfg.Backend)
	}

	interval := time.Duration(cfg.SampleIntervalMs) * time.Millisecond
	return NewSampler(backend, cfg.Samples, interval, timeutil.RealClock{}), nil
}

func checkReading(v float64, source string) (float64, error) {
	if v < 0 || v != v {
		return 0, fmt.Errorf("%w: %s reported %v", ErrSensor, source, v)
	}
	return v, nil
}
