package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

// systemd-logind session names.
const (
	logindName             = "org.freedesktop.login1"
	logindSessionPath      = dbus.ObjectPath("/org/freedesktop/login1/session/auto")
	logindSessionInterface = "org.freedesktop.login1.Session"
)

// caller is the subset of dbus.BusObject used for brightness writes.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Backlight controls kernel backlight devices. Levels are read from sysfs
// and written through logind so no root access is needed.
type Backlight struct {
	dir string

	mu      sync.Mutex
	session caller
	conn    *dbus.Conn
}

// NewBacklight creates a backend over the backlight class directory dir.
// A nil session connects to the system bus on first write.
func NewBacklight(dir string, session caller) *Backlight {
	if dir == "" {
		dir = "/sys/class/backlight"
	}
	return &Backlight{dir: dir, session: session}
}

// Detect lists the backlight devices under the class directory.
func (b *Backlight) Detect(ctx context.Context) ([]Monitor, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoMonitors
		}
		return nil, fmt.Errorf("%w: list %s: %v", ErrMonitor, b.dir, err)
	}

	var names []string
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(b.dir, e.Name(), "max_brightness")); err == nil {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, ErrNoMonitors
	}
	sort.Strings(names)

	monitors := make([]Monitor, len(names))
	for i, name := range names {
		monitors[i] = &BacklightDevice{backlight: b, name: name}
	}
	return monitors, nil
}

// Close drops the system bus connection, if one was opened.
func (b *Backlight) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn, b.session = nil, nil
	return err
}

func (b *Backlight) sessionObject(ctx context.Context) (caller, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		return b.session, nil
	}
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: connect to system bus: %v", ErrMonitor, err)
	}
	b.conn = conn
	b.session = conn.Object(logindName, logindSessionPath)
	return b.session, nil
}

// BacklightDevice is one /sys/class/backlight entry.
type BacklightDevice struct {
	backlight *Backlight
	name      string
}

// ID returns "backlight:<device name>".
func (d *BacklightDevice) ID() string {
	return "backlight:" + d.name
}

// Brightness returns the current level as a percentage of max_brightness.
func (d *BacklightDevice) Brightness(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	current, err := d.read("brightness")
	if err != nil {
		return 0, err
	}
	maxRaw, err := d.read("max_brightness")
	if err != nil {
		return 0, err
	}
	if maxRaw <= 0 {
		return 0, fmt.Errorf("%w: %s max_brightness is %d", ErrDecode, d.name, maxRaw)
	}
	return toPercent(current, maxRaw), nil
}

// SetBrightness asks logind to set the device to value percent.
func (d *BacklightDevice) SetBrightness(ctx context.Context, value int) error {
	maxRaw, err := d.read("max_brightness")
	if err != nil {
		return err
	}
	session, err := d.backlight.sessionObject(ctx)
	if err != nil {
		return err
	}

	raw := uint32(fromPercent(value, maxRaw))
	call := session.CallWithContext(ctx, logindSessionInterface+".SetBrightness", 0, "backlight", d.name, raw)
	if call.Err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrMonitor, d.ID(), call.Err)
	}
	return nil
}

func (d *BacklightDevice) read(file string) (int, error) {
	data, err := os.ReadFile(filepath.Join(d.backlight.dir, d.name, file))
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrMonitor, d.ID(), err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", ErrDecode, d.name, file, err)
	}
	return v, nil
}
