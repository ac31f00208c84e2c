package sensor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// iio-sensor-proxy D-Bus names.
const (
	SensorProxyName      = "net.hadess.SensorProxy"
	SensorProxyPath      = dbus.ObjectPath("/net/hadess/SensorProxy")
	SensorProxyInterface = "net.hadess.SensorProxy"
)

// busObject is the subset of dbus.BusObject used by IIOSensor.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
	GetProperty(p string) (dbus.Variant, error)
}

// IIOSensor reads the ambient light level published by iio-sensor-proxy.
type IIOSensor struct {
	logger *slog.Logger

	connect func(ctx context.Context) (io.Closer, busObject, error)

	mu      sync.Mutex
	conn    io.Closer
	obj     busObject
	claimed bool
	unit    string
}

// NewIIO creates a sensor that connects to the system bus on Init.
func NewIIO(logger *slog.Logger) *IIOSensor {
	if logger == nil {
		logger = slog.Default()
	}
	return &IIOSensor{logger: logger, connect: connectSensorProxy}
}

func connectSensorProxy(ctx context.Context) (io.Closer, busObject, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.Object(SensorProxyName, SensorProxyPath), nil
}

func newIIOWithObject(obj busObject) *IIOSensor {
	return &IIOSensor{logger: slog.Default(), obj: obj}
}

// Init checks that a light sensor is present and claims it.
func (s *IIOSensor) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimed {
		return nil
	}

	if s.obj == nil {
		conn, obj, err := s.connect(ctx)
		if err != nil {
			return fmt.Errorf("%w: connect to system bus: %v", ErrNoSensor, err)
		}
		s.conn, s.obj = conn, obj
	}

	if err := s.claim(ctx); err != nil {
		s.disconnect()
		return err
	}
	s.claimed = true

	if v, err := s.obj.GetProperty(SensorProxyInterface + ".LightLevelUnit"); err == nil {
		s.unit, _ = v.Value().(string)
	}
	s.logger.Debug("claimed ambient light sensor", "proxy", SensorProxyName, "unit", s.unit)
	return nil
}

// Value returns the current LightLevel property.
func (s *IIOSensor) Value(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !s.claimed {
		return 0, fmt.Errorf("%w: sensor not initialized", ErrSensor)
	}

	v, err := s.obj.GetProperty(SensorProxyInterface + ".LightLevel")
	if err != nil {
		return 0, fmt.Errorf("%w: read LightLevel: %v", ErrSensor, err)
	}
	level, ok := v.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("%w: LightLevel has type %s", ErrSensor, v.Signature())
	}
	return checkReading(level, SensorProxyName)
}

// Unit returns the unit reported by the proxy ("lux" or "vendor").
func (s *IIOSensor) Unit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

// Close releases the claim and the bus connection.
func (s *IIOSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.claimed {
		if call := s.obj.CallWithContext(context.Background(), SensorProxyInterface+".ReleaseLight", 0); call.Err != nil {
			err = fmt.Errorf("%w: release light: %v", ErrSensor, call.Err)
		}
		s.claimed = false
	}
	s.disconnect()
	return err
}

func (s *IIOSensor) claim(ctx context.Context) error {
	has, err := s.boolProperty("HasAmbientLight")
	if err != nil {
		return fmt.Errorf("%w: query %s: %v", ErrNoSensor, SensorProxyName, err)
	}
	if !has {
		return ErrNoSensor
	}
	if call := s.obj.CallWithContext(ctx, SensorProxyInterface+".ClaimLight", 0); call.Err != nil {
		return fmt.Errorf("%w: claim light: %v", ErrSensor, call.Err)
	}
	return nil
}

// disconnect closes a connection opened by Init. Injected objects are kept.
func (s *IIOSensor) disconnect() {
	if s.conn == nil {
		return
	}
	s.conn.Close()
	s.conn = nil
	s.obj = nil
}

func (s *IIOSensor) boolProperty(name string) (bool, error) {
	v, err := s.obj.GetProperty(SensorProxyInterface + "." + name)
	if err != nil {
		return false, err
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s has type %s", name, v.Signature())
	}
	return b, nil
}
