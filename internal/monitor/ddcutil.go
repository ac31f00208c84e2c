package monitor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// brightnessVCP is the MCCS feature code for luminance.
const brightnessVCP = "10"

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run runs name with args. A non-zero exit includes stderr in the error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// DDCUtil drives monitors through the ddcutil command line tool.
type DDCUtil struct {
	path    string
	runner  Runner
	timeout time.Duration
}

// NewDDCUtil creates a ddcutil backend. A nil runner uses ExecRunner.
func NewDDCUtil(path string, runner Runner, timeout time.Duration) *DDCUtil {
	if path == "" {
		path = "ddcutil"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &DDCUtil{path: path, runner: runner, timeout: timeout}
}

// Detect lists the displays ddcutil can talk to.
func (d *DDCUtil) Detect(ctx context.Context) ([]Monitor, error) {
	out, err := d.run(ctx, "detect", "--brief")
	if err != nil {
		return nil, err
	}

	numbers, models, err := parseDetect(out)
	if err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, ErrNoMonitors
	}

	monitors := make([]Monitor, len(numbers))
	for i, n := range numbers {
		monitors[i] = &Display{ddc: d, number: n, model: models[i]}
	}
	return monitors, nil
}

// Displays returns handles for fixed display numbers without detection.
func (d *DDCUtil) Displays(numbers []int) []Monitor {
	monitors := make([]Monitor, len(numbers))
	for i, n := range numbers {
		monitors[i] = &Display{ddc: d, number: n}
	}
	return monitors
}

func (d *DDCUtil) run(ctx context.Context, args ...string) ([]byte, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	out, err := d.runner.Run(ctx, d.path, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrMonitor, d.path, strings.Join(args, " "), err)
	}
	return out, nil
}

// parseDetect reads "ddcutil detect --brief" output. Each usable display
// starts with a "Display N" line; "Invalid display" blocks are skipped.
func parseDetect(out []byte) ([]int, []string, error) {
	var (
		numbers []int
		models  []string
	)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	inDisplay := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Display "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Display ")))
			if err != nil || n < 1 {
				return nil, nil, fmt.Errorf("%w: unexpected display header %q", ErrDecode, line)
			}
			numbers = append(numbers, n)
			models = append(models, "")
			inDisplay = true
		case line == "" || strings.HasPrefix(line, "Invalid display"):
			inDisplay = false
		case inDisplay && strings.HasPrefix(line, "Monitor:"):
			models[len(models)-1] = strings.TrimSpace(strings.TrimPrefix(line, "Monitor:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return numbers, models, nil
}

// parseVCP reads "getvcp --brief" output of the form "VCP 10 C <cur> <max>".
func parseVCP(out []byte) (current, max int, err error) {
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) != 5 || fields[0] != "VCP" || !strings.EqualFold(fields[1], brightnessVCP) || fields[2] != "C" {
		return 0, 0, fmt.Errorf("%w: unexpected getvcp output %q", ErrDecode, strings.TrimSpace(string(out)))
	}
	current, err1 := strconv.Atoi(fields[3])
	max, err2 := strconv.Atoi(fields[4])
	if err1 != nil || err2 != nil || max <= 0 || current < 0 {
		return 0, 0, fmt.Errorf("%w: unexpected getvcp values %q", ErrDecode, strings.TrimSpace(string(out)))
	}
	return current, max, nil
}

// Display is one ddcutil display.
type Display struct {
	ddc    *DDCUtil
	number int
	model  string

	mu  sync.Mutex
	max int
}

// ID returns "ddcutil:<display number>".
func (d *Display) ID() string {
	return "ddcutil:" + strconv.Itoa(d.number)
}

// Number returns the ddcutil display number.
func (d *Display) Number() int {
	return d.number
}

// Model returns the monitor model reported during detection.
func (d *Display) Model() string {
	return d.model
}

// Brightness reads VCP 0x10 and returns it as a percentage of its maximum.
func (d *Display) Brightness(ctx context.Context) (int, error) {
	out, err := d.ddc.run(ctx, "--display", strconv.Itoa(d.number), "getvcp", brightnessVCP, "--brief")
	if err != nil {
		return 0, err
	}
	current, max, err := parseVCP(out)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.max = max
	d.mu.Unlock()

	return toPercent(current, max), nil
}

// SetBrightness writes value, scaled to the display's VCP maximum.
func (d *Display) SetBrightness(ctx context.Context, value int) error {
	d.mu.Lock()
	max := d.max
	d.mu.Unlock()

	if max == 0 {
		if _, err := d.Brightness(ctx); err != nil {
			return err
		}
		d.mu.Lock()
		max = d.max
		d.mu.Unlock()
	}

	raw := fromPercent(value, max)
	_, err := d.ddc.run(ctx, "--display", strconv.Itoa(d.number), "setvcp", brightnessVCP, strconv.Itoa(raw))
	return err
}

// SameLevel reports whether two percentages scale to the same raw VCP
// value. Before the first read the maximum is unknown and only equal
// percentages match.
func (d *Display) SameLevel(current, target int) bool {
	d.mu.Lock()
	max := d.max
	d.mu.Unlock()

	if max == 0 {
		return current == target
	}
	return fromPercent(current, max) == fromPercent(target, max)
}

func toPercent(raw, max int) int {
	if max == 100 {
		return raw
	}
	return int(math.Floor(float64(raw)*100/float64(max) + 0.5))
}

func fromPercent(pct, max int) int {
	if max == 100 {
		return pct
	}
	return int(math.Floor(float64(pct)*float64(max)/100 + 0.5))
}
