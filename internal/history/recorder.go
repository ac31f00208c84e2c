package history

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"ddcrelight/internal/timeutil"
)

// Recorder folds observations into a Store.
type Recorder struct {
	store  Store
	clock  timeutil.Clock
	window time.Duration
	logger *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the clock used for promotion and last_updated.
func WithClock(c timeutil.Clock) RecorderOption {
	return func(r *Recorder) { r.clock = c }
}

// WithPromotionWindow overrides DefaultPromotionWindow.
func WithPromotionWindow(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.window = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		clock:  timeutil.RealClock{},
		window: DefaultPromotionWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result describes a recorded observation.
type Result struct {
	Document Document
	Promoted bool
}

// Record folds the observation (light, brightness) into the stored document
// and saves it. Invalid input is rejected before the store is touched.
func (r *Recorder) Record(ctx context.Context, light float64, brightness int) (Result, error) {
	if brightness < MinBrightness || brightness > MaxBrightness {
		return Result{}, fmt.Errorf("%w: got %d", ErrBrightnessOutOfRange, brightness)
	}
	if math.IsNaN(light) || math.IsInf(light, 0) {
		return Result{}, ErrInvalidLight
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	doc, err := r.store.Load()
	if err != nil {
		return Result{}, err
	}

	now := r.clock.Now()
	next, promoted := Fold(doc, Observation{Brightness: brightness, Light: light}, now, r.window)

	r.logger.Debug("recording observation",
		"light", light,
		"brightness", brightness,
		"promoted", promoted,
		"stable_entries", len(next.Stable),
		"newest_entries", len(next.Newest),
	)

	if err := r.store.Save(next); err != nil {
		return Result{}, err
	}
	return Result{Document: next, Promoted: promoted}, nil
}
