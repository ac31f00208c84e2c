// Package monitor controls display brightness.
//
// Monitors are driven either through ddcutil (DDC/CI over I2C) or through
// the kernel backlight class with writes routed via systemd-logind.
// Every handle returned by Discover is cached: the first brightness read
// is remembered until the next write.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"ddcrelight/internal/config"
)

var (
	// ErrMonitor indicates a failed brightness read or write.
	ErrMonitor = errors.New("monitor: command failed")

	// ErrNoMonitors is returned when discovery finds nothing to control.
	ErrNoMonitors = errors.New("no compatible monitors found")

	// ErrDecode is returned when tool output cannot be parsed.
	ErrDecode = errors.New("decode failed")
)

// Monitor is a display whose brightness can be read and written.
// Brightness values are percentages in 0..100.
type Monitor interface {
	ID() string
	Brightness(ctx context.Context) (int, error)
	SetBrightness(ctx context.Context, value int) error
}

// CachedMonitor remembers the brightness of a monitor after the first
// read, and updates it on every successful write.
type CachedMonitor struct {
	monitor Monitor

	mu    sync.Mutex
	value int
	valid bool
}

// Cached wraps m. Wrapping a CachedMonitor returns it unchanged.
func Cached(m Monitor) *CachedMonitor {
	if c, ok := m.(*CachedMonitor); ok {
		return c
	}
	return &CachedMonitor{monitor: m}
}

// ID returns the wrapped monitor's ID.
func (c *CachedMonitor) ID() string {
	return c.monitor.ID()
}

// Brightness returns the cached value, fetching it on first use.
func (c *CachedMonitor) Brightness(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid {
		return c.value, nil
	}
	v, err := c.monitor.Brightness(ctx)
	if err != nil {
		return 0, err
	}
	c.value, c.valid = v, true
	return v, nil
}

// SetBrightness writes value and caches it. A failed write drops the
// cache so the next read goes to the device.
func (c *CachedMonitor) SetBrightness(ctx context.Context, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.monitor.SetBrightness(ctx, value); err != nil {
		c.valid = false
		return err
	}
	c.value, c.valid = value, true
	return nil
}

// SameLevel reports whether current and target drive the wrapped monitor
// to the same hardware level.
func (c *CachedMonitor) SameLevel(current, target int) bool {
	return sameLevel(c.monitor, current, target)
}

// Model returns the wrapped monitor's model, if it reports one.
func (c *CachedMonitor) Model() string {
	return Model(c.monitor)
}

// Invalidate forgets the cached value.
func (c *CachedMonitor) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// levelMatcher is implemented by monitors whose hardware scale is coarser
// than a percent, so several percentages map to one level.
type levelMatcher interface {
	SameLevel(current, target int) bool
}

func sameLevel(m Monitor, current, target int) bool {
	if current == target {
		return true
	}
	if lm, ok := m.(levelMatcher); ok {
		return lm.SameLevel(current, target)
	}
	return false
}

// Model returns the model name reported by m, or "" if it has none.
func Model(m Monitor) string {
	if mm, ok := m.(interface{ Model() string }); ok {
		return mm.Model()
	}
	return ""
}

// Adjust brings every monitor to target concurrently. Each monitor is read
// first and only written when it differs. Adjust returns once every
// monitor has been handled, reporting how many were written and all
// failures joined together.
func Adjust(ctx context.Context, monitors []Monitor, target int) (int, error) {
	if target < 0 || target > 100 {
		return 0, fmt.Errorf("%w: brightness %d out of range 0..100", ErrMonitor, target)
	}

	var (
		g       errgroup.Group
		changed atomic.Int64
		errs    = make([]error, len(monitors))
	)
	for i, m := range monitors {
		i, m := i, m
		g.Go(func() error {
			current, err := m.Brightness(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", m.ID(), err)
				return errs[i]
			}
			if sameLevel(m, current, target) {
				return nil
			}
			if err := m.SetBrightness(ctx, target); err != nil {
				errs[i] = fmt.Errorf("%s: %w", m.ID(), err)
				return errs[i]
			}
			changed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(changed.Load()), errors.Join(errs...)
	}
	return int(changed.Load()), nil
}

// Discover returns cached handles for the monitors described by cfg.
func Discover(ctx context.Context, cfg config.MonitorsConfig, logger *slog.Logger) ([]Monitor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		found []Monitor
		err   error
	)
	switch cfg.Backend {
	case "ddcutil":
		d := NewDDCUtil(cfg.DdcutilPath, nil, cfg.Timeout())
		if len(cfg.Displays) > 0 {
			found = d.Displays(cfg.Displays)
		} else {
			found, err = d.Detect(ctx)
		}
	case "backlight":
		found, err = NewBacklight(cfg.BacklightDir, nil).Detect(ctx)
	default:
		return nil, fmt.Errorf("monitor: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Monitor, len(found))
	for i, m := range found {
		logger.Debug("monitor found", "id", m.ID())
		out[i] = Cached(m)
	}
	return out, nil
}
