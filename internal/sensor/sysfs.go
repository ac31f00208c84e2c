package sensor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsSensor reads an IIO illuminance channel directly from sysfs.
type SysfsSensor struct {
	dir string
}

// NewSysfs creates a sensor for the IIO device directory dir.
func NewSysfs(dir string) *SysfsSensor {
	return &SysfsSensor{dir: dir}
}

// Init checks that the device exposes an illuminance channel.
func (s *SysfsSensor) Init(ctx context.Context) error {
	for _, name := range []string{"in_illuminance_input", "in_illuminance_raw"} {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no illuminance channel", ErrNoSensor, s.dir)
}

// Value reads in_illuminance_input, or in_illuminance_raw multiplied by
// in_illuminance_scale when the processed channel is absent.
func (s *SysfsSensor) Value(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	v, err := s.readFloat("in_illuminance_input")
	if err == nil {
		return checkReading(v, s.dir)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %v", ErrSensor, err)
	}

	raw, err := s.readFloat("in_illuminance_raw")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSensor, err)
	}
	scale, err := s.readFloat("in_illuminance_scale")
	switch {
	case errors.Is(err, fs.ErrNotExist):
		scale = 1
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrSensor, err)
	}
	return checkReading(raw*scale, s.dir)
}

// Close is a no-op.
func (s *SysfsSensor) Close() error {
	return nil
}

func (s *SysfsSensor) readFloat(name string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}
