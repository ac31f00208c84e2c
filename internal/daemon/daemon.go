// Package daemon runs the brightness control loop: read the ambient light,
// ask the learned curve for a target, and bring every monitor to it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ddcrelight/internal/config"
	"ddcrelight/internal/history"
	"ddcrelight/internal/logging"
	"ddcrelight/internal/monitor"
	"ddcrelight/internal/sensor"
	"ddcrelight/internal/timeutil"
)

// Recommender maps a light level to a brightness target.
type Recommender interface {
	Interpolate(light float64) (int, error)
}

// Settings are the loop timings. They can be replaced while running.
type Settings struct {
	IdleInterval   time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// SettingsFromConfig extracts loop timings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		IdleInterval:   cfg.IdleInterval(),
		BackoffInitial: time.Duration(cfg.Daemon.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.Daemon.BackoffMaxSec) * time.Second,
	}
}

// Options configures a Daemon.
type Options struct {
	Sensor      sensor.LightSensor
	Monitors    []monitor.Monitor
	Recommender Recommender
	Settings    Settings

	// Rediscover, when set, is used to find monitors again after a pass in
	// which a monitor failed.
	Rediscover func(ctx context.Context) ([]monitor.Monitor, error)

	Clock  timeutil.Clock
	Logger *slog.Logger
}

// Stats counts what the loop has done.
type Stats struct {
	Passes     int
	Changes    int
	Failures   int
	LastLight  float64
	LastTarget int
}

// Daemon is the control loop.
type Daemon struct {
	sensor      sensor.LightSensor
	recommender Recommender
	rediscover  func(ctx context.Context) ([]monitor.Monitor, error)
	clock       timeutil.Clock
	logger      *slog.Logger

	mu       sync.Mutex
	monitors []monitor.Monitor
	settings Settings
	stale    bool
	stats    Stats
}

// New creates a daemon from opts.
func New(opts Options) *Daemon {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Daemon{
		sensor:      opts.Sensor,
		recommender: opts.Recommender,
		rediscover:  opts.Rediscover,
		clock:       opts.Clock,
		logger:      opts.Logger,
		monitors:    opts.Monitors,
		settings:    normalize(opts.Settings),
	}
}

func normalize(s Settings) Settings {
	if s.IdleInterval <= 0 {
		s.IdleInterval = 5 * time.Second
	}
	if s.BackoffInitial <= 0 {
		s.BackoffInitial = time.Second
	}
	if s.BackoffMax < s.BackoffInitial {
		s.BackoffMax = s.BackoffInitial
	}
	return s
}

// UpdateSettings replaces the loop timings. The current wait is not cut
// short; the new values apply from the next wait on.
func (d *Daemon) UpdateSettings(s Settings) {
	d.mu.Lock()
	d.settings = normalize(s)
	d.mu.Unlock()
	d.logger.Info("daemon settings updated",
		"idle", s.IdleInterval, "backoff_initial", s.BackoffInitial, "backoff_max", s.BackoffMax)
}

// Stats returns a snapshot of the loop counters.
func (d *Daemon) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Run loops until ctx is cancelled. After a pass that changed nothing it
// waits the idle interval; after a pass that changed a monitor it goes
// again at once. Failed passes are retried with exponential backoff.
// Run returns ctx.Err() on cancellation, or the error of a pass that
// cannot be retried.
func (d *Daemon) Run(ctx context.Context) error {
	var backoff time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		passCtx := logging.ContextWithPass(ctx, logging.NewPassID())
		changed, err := d.Step(passCtx)

		d.mu.Lock()
		settings := d.settings
		d.mu.Unlock()

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, history.ErrDegenerateHistory) {
				return err
			}
			backoff = nextBackoff(backoff, settings)
			wait = backoff
			d.logger.Warn("pass failed, backing off",
				"pass", logging.PassFromContext(passCtx), "error", err, "retry_in", wait)
		case changed == 0:
			backoff = 0
			wait = settings.IdleInterval
		default:
			backoff = 0
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.clock.After(wait):
		}
	}
}

func nextBackoff(prev time.Duration, s Settings) time.Duration {
	if prev <= 0 {
		return s.BackoffInitial
	}
	next := prev * 2
	if next > s.BackoffMax {
		next = s.BackoffMax
	}
	return next
}

// Step runs a single pass and returns the number of monitors written.
func (d *Daemon) Step(ctx context.Context) (int, error) {
	pass := logging.PassFromContext(ctx)

	monitors, err := d.currentMonitors(ctx)
	if err != nil {
		d.recordFailure()
		return 0, err
	}

	light, err := d.sensor.Value(ctx)
	if err != nil {
		d.recordFailure()
		return 0, fmt.Errorf("read light: %w", err)
	}

	target, err := d.recommender.Interpolate(light)
	if err != nil {
		d.recordFailure()
		return 0, fmt.Errorf("interpolate brightness: %w", err)
	}

	changed, err := monitor.Adjust(ctx, monitors, target)

	d.mu.Lock()
	d.stats.Passes++
	d.stats.Changes += changed
	d.stats.LastLight = light
	d.stats.LastTarget = target
	if err != nil {
		d.stats.Failures++
		d.stale = d.rediscover != nil
	}
	d.mu.Unlock()

	if changed > 0 {
		d.logger.Info("brightness adjusted",
			"pass", pass, "light", light, "target", target, "changed", changed)
	} else {
		d.logger.Debug("brightness unchanged", "pass", pass, "light", light, "target", target)
	}
	if err != nil {
		return changed, fmt.Errorf("adjust brightness: %w", err)
	}
	return changed, nil
}

func (d *Daemon) recordFailure() {
	d.mu.Lock()
	d.stats.Passes++
	d.stats.Failures++
	d.mu.Unlock()
}

func (d *Daemon) currentMonitors(ctx context.Context) ([]monitor.Monitor, error) {
	d.mu.Lock()
	stale := d.stale
	monitors := d.monitors
	d.mu.Unlock()

	if !stale && len(monitors) > 0 {
		return monitors, nil
	}
	if d.rediscover == nil {
		if len(monitors) == 0 {
			return nil, monitor.ErrNoMonitors
		}
		return monitors, nil
	}

	found, err := d.rediscover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover monitors: %w", err)
	}
	d.logger.Info("monitors discovered", "count", len(found))

	d.mu.Lock()
	d.monitors = found
	d.stale = false
	d.mu.Unlock()
	return found, nil
}
