package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu        sync.Mutex
	outputs   map[string]string
	errs      map[string]error
	commands  []string
	deadlines []bool
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := name + " " + strings.Join(args, " ")
	r.commands = append(r.commands, cmd)
	_, hasDeadline := ctx.Deadline()
	r.deadlines = append(r.deadlines, hasDeadline)

	if err, ok := r.errs[cmd]; ok {
		return nil, err
	}
	return []byte(r.outputs[cmd]), nil
}

const detectOutput = `Display 1
   I2C bus:  /dev/i2c-4
   Monitor:  DEL:DELL U2715H:GH85D66K0ABL

Invalid display
   I2C bus:  /dev/i2c-6
   DDC communication failed

Display 2
   I2C bus:  /dev/i2c-7
   Monitor:  GSM:LG HDR 4K:
`

func TestDDCUtilDetect(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"ddcutil detect --brief": detectOutput}}
	d := NewDDCUtil("", r, 5*time.Second)

	monitors, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, monitors, 2)

	first := monitors[0].(*Display)
	assert.Equal(t, "ddcutil:1", first.ID())
	assert.Equal(t, 1, first.Number())
	assert.Equal(t, "DEL:DELL U2715H:GH85D66K0ABL", first.Model())
	assert.Equal(t, "ddcutil:2", monitors[1].ID())
	assert.Equal(t, []bool{true}, r.deadlines)
}

func TestDDCUtilDetectErrors(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   error
	}{
		{"nothing found", "No displays found.\n", nil, ErrNoMonitors},
		{"only invalid", "Invalid display\n   I2C bus: /dev/i2c-3\n", nil, ErrNoMonitors},
		{"garbled header", "Display one\n", nil, ErrDecode},
		{"command fails", "", errors.New("exit status 1"), ErrMonitor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{
				outputs: map[string]string{"ddcutil detect --brief": tt.output},
				errs:    map[string]error{},
			}
			if tt.err != nil {
				r.errs["ddcutil detect --brief"] = tt.err
			}
			_, err := NewDDCUtil("ddcutil", r, time.Second).Detect(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDisplayBrightness(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"ddcutil --display 1 getvcp 10 --brief": "VCP 10 C 42 100\n",
		"ddcutil --display 2 getvcp 10 --brief": "VCP 10 C 128 255\n",
		"ddcutil --display 3 getvcp 10 --brief": "VCP 10 ERR\n",
	}}
	d := NewDDCUtil("ddcutil", r, time.Second)
	displays := d.Displays([]int{1, 2, 3})

	v, err := displays[0].Brightness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = displays[1].Brightness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	_, err = displays[2].Brightness(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDisplaySetBrightnessScales(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"/usr/bin/ddcutil --display 2 getvcp 10 --brief": "VCP 10 C 0 255\n",
	}}
	d := NewDDCUtil("/usr/bin/ddcutil", r, time.Second)
	display := d.Displays([]int{2})[0]

	require.NoError(t, display.SetBrightness(context.Background(), 50))
	require.NoError(t, display.SetBrightness(context.Background(), 100))

	assert.Equal(t, []string{
		"/usr/bin/ddcutil --display 2 getvcp 10 --brief",
		"/usr/bin/ddcutil --display 2 setvcp 10 128",
		"/usr/bin/ddcutil --display 2 setvcp 10 255",
	}, r.commands)
}

func TestDisplaySetBrightnessFailure(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]string{"ddcutil --display 1 getvcp 10 --brief": "VCP 10 C 10 100"},
		errs:    map[string]error{"ddcutil --display 1 setvcp 10 20": errors.New("DDC busy")},
	}
	display := NewDDCUtil("", r, time.Second).Displays([]int{1})[0]

	err := display.SetBrightness(context.Background(), 20)
	assert.ErrorIs(t, err, ErrMonitor)
	assert.Contains(t, err.Error(), "DDC busy")
}

func TestAdjustOverDDCUtilIssuesOnlyNeededWrites(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"ddcutil --display 1 getvcp 10 --brief": "VCP 10 C 70 100",
		"ddcutil --display 2 getvcp 10 --brief": "VCP 10 C 35 100",
	}}
	displays := NewDDCUtil("", r, time.Second).Displays([]int{1, 2})
	monitors := []Monitor{Cached(displays[0]), Cached(displays[1])}

	changed, err := Adjust(context.Background(), monitors, 70)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	changed, err = Adjust(context.Background(), monitors, 70)
	require.NoError(t, err)
	assert.Zero(t, changed)

	var sets int
	for _, c := range r.commands {
		if strings.Contains(c, "setvcp") {
			sets++
		}
	}
	assert.Equal(t, 1, sets)
	assert.Len(t, r.commands, 3)
}

func TestPercentScaling(t *testing.T) {
	assert.Equal(t, 37, toPercent(37, 100))
	assert.Equal(t, 100, toPercent(255, 255))
	assert.Equal(t, 0, toPercent(0, 255))
	assert.Equal(t, 96, fromPercent(20, 480))
	assert.Equal(t, 19393, fromPercent(100, 19393))
}

func TestDisplaySameLevelCoarseScale(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"ddcutil --display 1 getvcp 10 --brief": "VCP 10 C 1 50\n",
	}}
	display := NewDDCUtil("", r, time.Second).Displays([]int{1})[0].(*Display)

	assert.False(t, display.SameLevel(2, 1), "maximum unknown before the first read")

	v, err := display.Brightness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.True(t, display.SameLevel(2, 1))
	assert.False(t, display.SameLevel(2, 3))
}

func TestAdjustComparesRawLevels(t *testing.T) {
	for maxRaw := 1; maxRaw <= 255; maxRaw++ {
		for target := 0; target <= 100; target++ {
			raw := fromPercent(target, maxRaw)
			require.Equal(t, raw, fromPercent(toPercent(raw, maxRaw), maxRaw),
				"max %d target %d", maxRaw, target)
		}
	}

	r := &fakeRunner{outputs: map[string]string{
		"ddcutil --display 1 getvcp 10 --brief": "VCP 10 C 1 50\n",
	}}
	display := Cached(NewDDCUtil("", r, time.Second).Displays([]int{1})[0])
	ctx := context.Background()

	n, err := Adjust(ctx, []Monitor{display}, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = Adjust(ctx, []Monitor{display}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{
		"ddcutil --display 1 getvcp 10 --brief",
		"ddcutil --display 1 setvcp 10 2",
	}, r.commands)
}
