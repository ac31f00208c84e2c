package sensor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"ddcrelight/internal/timeutil"
)

// Sampler takes several readings from a sensor and reports their median.
// A single noisy reading therefore cannot swing the target brightness.
type Sampler struct {
	sensor   LightSensor
	samples  int
	interval time.Duration
	clock    timeutil.Clock
}

// NewSampler wraps s. samples below 1 are treated as 1.
func NewSampler(s LightSensor, samples int, interval time.Duration, clock timeutil.Clock) *Sampler {
	if samples < 1 {
		samples = 1
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Sampler{sensor: s, samples: samples, interval: interval, clock: clock}
}

// Init initializes the wrapped sensor.
func (s *Sampler) Init(ctx context.Context) error {
	return s.sensor.Init(ctx)
}

// Value returns the median of the configured number of readings. For an
// even count the lower of the two middle readings is used. Any failed
// reading fails the whole measurement.
func (s *Sampler) Value(ctx context.Context) (float64, error) {
	readings := make([]float64, 0, s.samples)
	for i := 0; i < s.samples; i++ {
		if i > 0 && s.interval > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-s.clock.After(s.interval):
			}
		}

		v, err := s.sensor.Value(ctx)
		if err != nil {
			return 0, err
		}
		readings = append(readings, v)
	}

	sort.Float64s(readings)
	median := stat.Quantile(0.5, stat.Empirical, readings, nil)
	if median != median {
		return 0, fmt.Errorf("%w: no usable readings", ErrSensor)
	}
	return median, nil
}

// Close closes the wrapped sensor.
func (s *Sampler) Close() error {
	return s.sensor.Close()
}
