package sensor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProxy struct {
	props   map[string]interface{}
	calls   []string
	callErr error
}

func (f *fakeProxy) CallWithContext(_ context.Context, method string, _ dbus.Flags, _ ...interface{}) *dbus.Call {
	f.calls = append(f.calls, method)
	return &dbus.Call{Method: method, Err: f.callErr}
}

func (f *fakeProxy) GetProperty(p string) (dbus.Variant, error) {
	v, ok := f.props[p]
	if !ok {
		return dbus.Variant{}, errors.New("no such property")
	}
	return dbus.MakeVariant(v), nil
}

func newFakeProxy(level float64) *fakeProxy {
	return &fakeProxy{props: map[string]interface{}{
		SensorProxyInterface + ".HasAmbientLight": true,
		SensorProxyInterface + ".LightLevel":      level,
		SensorProxyInterface + ".LightLevelUnit":  "lux",
	}}
}

func TestIIOSensorLifecycle(t *testing.T) {
	proxy := newFakeProxy(321.5)
	s := newIIOWithObject(proxy)
	ctx := context.Background()

	_, err := s.Value(ctx)
	assert.ErrorIs(t, err, ErrSensor, "reading before Init")

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, "lux", s.Unit())

	v, err := s.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 321.5, v)

	require.NoError(t, s.Close())
	assert.Equal(t, []string{
		SensorProxyInterface + ".ClaimLight",
		SensorProxyInterface + ".ReleaseLight",
	}, proxy.calls)
}

func TestIIOSensorNoLight(t *testing.T) {
	proxy := newFakeProxy(0)
	proxy.props[SensorProxyInterface+".HasAmbientLight"] = false

	err := newIIOWithObject(proxy).Init(context.Background())
	assert.ErrorIs(t, err, ErrNoSensor)
	assert.Empty(t, proxy.calls)
}

func TestIIOSensorClaimFails(t *testing.T) {
	proxy := newFakeProxy(0)
	proxy.callErr = errors.New("access denied")

	err := newIIOWithObject(proxy).Init(context.Background())
	assert.ErrorIs(t, err, ErrSensor)
}

func TestIIOSensorBadLevel(t *testing.T) {
	proxy := newFakeProxy(-1)
	s := newIIOWithObject(proxy)
	require.NoError(t, s.Init(context.Background()))

	_, err := s.Value(context.Background())
	assert.ErrorIs(t, err, ErrSensor)

	proxy.props[SensorProxyInterface+".LightLevel"] = "dark"
	_, err = s.Value(context.Background())
	assert.ErrorIs(t, err, ErrSensor)
}

type fakeConn struct{ closed int }

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

func TestIIOSensorInitFailureClosesConnection(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeProxy)
		want  error
	}{
		{"no light sensor", func(p *fakeProxy) {
			p.props[SensorProxyInterface+".HasAmbientLight"] = false
		}, ErrNoSensor},
		{"claim refused", func(p *fakeProxy) {
			p.callErr = errors.New("access denied")
		}, ErrSensor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy := newFakeProxy(5)
			tt.setup(proxy)

			var conns []*fakeConn
			s := NewIIO(nil)
			s.connect = func(context.Context) (io.Closer, busObject, error) {
				c := &fakeConn{}
				conns = append(conns, c)
				return c, proxy, nil
			}

			assert.ErrorIs(t, s.Init(context.Background()), tt.want)
			require.Len(t, conns, 1)
			assert.Equal(t, 1, conns[0].closed)
			assert.Nil(t, s.conn)
			assert.Nil(t, s.obj)

			assert.ErrorIs(t, s.Init(context.Background()), tt.want)
			require.Len(t, conns, 2, "a retry opens a fresh connection")
			assert.Equal(t, 1, conns[1].closed)
		})
	}
}

func TestIIOSensorCloseReleasesConnection(t *testing.T) {
	proxy := newFakeProxy(5)
	conn := &fakeConn{}
	s := NewIIO(nil)
	s.connect = func(context.Context) (io.Closer, busObject, error) { return conn, proxy, nil }

	require.NoError(t, s.Init(context.Background()))
	assert.Zero(t, conn.closed)
	require.NoError(t, s.Close())
	assert.Equal(t, 1, conn.closed)
}
