package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddcrelight/internal/config"
)

type fakeMonitor struct {
	id       string
	value    int
	readErr  error
	writeErr error
	release  chan struct{}

	mu     sync.Mutex
	reads  int
	writes []int
}

func (f *fakeMonitor) ID() string { return f.id }

func (f *fakeMonitor) Brightness(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.value, nil
}

func (f *fakeMonitor) SetBrightness(_ context.Context, v int) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, v)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.value = v
	return nil
}

func (f *fakeMonitor) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestAdjustWritesOnlyDifferingMonitors(t *testing.T) {
	const target = 60
	values := []int{60, 20, 60, 100, 0, 60}

	monitors := make([]Monitor, len(values))
	fakes := make([]*fakeMonitor, len(values))
	for i, v := range values {
		fakes[i] = &fakeMonitor{id: string(rune('a' + i)), value: v}
		monitors[i] = fakes[i]
	}

	changed, err := Adjust(context.Background(), monitors, target)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	total := 0
	for i, f := range fakes {
		total += f.writeCount()
		if values[i] == target {
			assert.Empty(t, f.writes, f.id)
		} else {
			assert.Equal(t, []int{target}, f.writes, f.id)
		}
	}
	assert.Equal(t, 3, total)
}

func TestAdjustWaitsForAllWrites(t *testing.T) {
	release := make(chan struct{})
	slow := &fakeMonitor{id: "slow", value: 10, release: release}
	fast := &fakeMonitor{id: "fast", value: 10}

	var finished atomic.Bool
	done := make(chan int)
	go func() {
		changed, _ := Adjust(context.Background(), []Monitor{slow, fast}, 50)
		finished.Store(true)
		done <- changed
	}()

	require.Eventually(t, func() bool { return fast.writeCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, finished.Load(), "Adjust returned before the slow write finished")

	close(release)
	select {
	case changed := <-done:
		assert.Equal(t, 2, changed)
	case <-time.After(time.Second):
		t.Fatal("Adjust did not return")
	}
}

func TestAdjustJoinsErrors(t *testing.T) {
	readFail := &fakeMonitor{id: "r", readErr: ErrMonitor}
	writeFail := &fakeMonitor{id: "w", value: 0, writeErr: ErrMonitor}
	ok := &fakeMonitor{id: "ok", value: 0}

	changed, err := Adjust(context.Background(), []Monitor{readFail, writeFail, ok}, 40)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMonitor)
	assert.Contains(t, err.Error(), "r: ")
	assert.Contains(t, err.Error(), "w: ")
	assert.Equal(t, 1, changed)
	assert.Equal(t, []int{40}, ok.writes)
}

func TestAdjustRejectsOutOfRange(t *testing.T) {
	m := &fakeMonitor{id: "m"}
	for _, target := range []int{-1, 101} {
		_, err := Adjust(context.Background(), []Monitor{m}, target)
		assert.ErrorIs(t, err, ErrMonitor)
	}
	assert.Zero(t, m.reads)
}

func TestAdjustNoMonitors(t *testing.T) {
	changed, err := Adjust(context.Background(), nil, 50)
	assert.NoError(t, err)
	assert.Zero(t, changed)
}

func TestCachedMonitor(t *testing.T) {
	f := &fakeMonitor{id: "m", value: 30}
	c := Cached(f)
	ctx := context.Background()

	assert.Same(t, c, Cached(c))
	assert.Equal(t, "m", c.ID())

	for i := 0; i < 3; i++ {
		v, err := c.Brightness(ctx)
		require.NoError(t, err)
		assert.Equal(t, 30, v)
	}
	assert.Equal(t, 1, f.reads)

	require.NoError(t, c.SetBrightness(ctx, 70))
	v, err := c.Brightness(ctx)
	require.NoError(t, err)
	assert.Equal(t, 70, v)
	assert.Equal(t, 1, f.reads)

	c.Invalidate()
	_, err = c.Brightness(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.reads)
}

func TestCachedMonitorFailedWriteDropsCache(t *testing.T) {
	f := &fakeMonitor{id: "m", value: 30}
	c := Cached(f)
	ctx := context.Background()

	_, err := c.Brightness(ctx)
	require.NoError(t, err)

	f.writeErr = errors.New("bus busy")
	assert.Error(t, c.SetBrightness(ctx, 80))

	_, err = c.Brightness(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.reads)
}

func TestCachedReadErrorNotCached(t *testing.T) {
	f := &fakeMonitor{id: "m", readErr: ErrMonitor}
	c := Cached(f)

	_, err := c.Brightness(context.Background())
	assert.ErrorIs(t, err, ErrMonitor)

	f.readErr = nil
	f.value = 12
	v, err := c.Brightness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, v)
}

func TestDiscoverFixedDisplays(t *testing.T) {
	cfg := config.DefaultConfig().Monitors
	cfg.Displays = []int{1, 2}

	monitors, err := Discover(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, monitors, 2)
	assert.Equal(t, "ddcutil:1", monitors[0].ID())
	assert.IsType(t, &CachedMonitor{}, monitors[1])

	display := monitors[0].(*CachedMonitor).monitor.(*Display)
	assert.Equal(t, cfg.Timeout(), display.ddc.timeout)
	assert.Empty(t, Model(monitors[0]))
}

func TestModel(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"ddcutil detect --brief": detectOutput}}
	found, err := NewDDCUtil("", r, time.Second).Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "DEL:DELL U2715H:GH85D66K0ABL", Model(Cached(found[0])))
	assert.Empty(t, Model(&fakeMonitor{id: "plain"}))
}

func TestDiscoverUnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig().Monitors
	cfg.Backend = "hdmi-cec"
	_, err := Discover(context.Background(), cfg, nil)
	assert.Error(t, err)
}
