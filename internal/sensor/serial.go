package sensor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// pollInterval bounds a single port read so cancellation is noticed.
const pollInterval = 100 * time.Millisecond

// PortOptions describes the serial line parameters.
type PortOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Normalize validates the options and fills in defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// Mode converts the options into a serial.Mode.
func (o PortOptions) Mode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// port is the subset of serial.Port used by SerialSensor.
type port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// SerialSensor reads a light meter that prints one reading per line.
// Lines may carry a label ("lux: 12.5" or "lux=12.5"); the last field is
// parsed.
type SerialSensor struct {
	path    string
	opts    PortOptions
	timeout time.Duration
	open    func(path string, mode *serial.Mode) (port, error)

	mu      sync.Mutex
	port    port
	pending []byte
}

// NewSerial creates a serial sensor for the device at path.
func NewSerial(path string, opts PortOptions, timeout time.Duration) *SerialSensor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SerialSensor{
		path:    path,
		opts:    opts,
		timeout: timeout,
		open: func(path string, mode *serial.Mode) (port, error) {
			return serial.Open(path, mode)
		},
	}
}

// Init opens the port.
func (s *SerialSensor) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}

	mode, err := s.opts.Mode()
	if err != nil {
		return fmt.Errorf("sensor: serial options: %w", err)
	}
	p, err := s.open(s.path, mode)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrNoSensor, s.path, err)
	}
	if err := p.SetReadTimeout(pollInterval); err != nil {
		p.Close()
		return fmt.Errorf("%w: configure %s: %v", ErrSensor, s.path, err)
	}
	s.port = p
	return nil
}

// Value returns the most recent complete reading. Stale buffered input is
// discarded first.
func (s *SerialSensor) Value(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return 0, fmt.Errorf("%w: %s not open", ErrSensor, s.path)
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("%w: flush %s: %v", ErrSensor, s.path, err)
	}
	// The first line after a flush may be partial.
	s.pending = s.pending[:0]
	synced := false

	deadline := time.Now().Add(s.timeout)
	chunk := make([]byte, 256)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, err := s.port.Read(chunk)
		if err != nil {
			return 0, fmt.Errorf("%w: read %s: %v", ErrSensor, s.path, err)
		}
		if n == 0 {
			continue
		}
		s.pending = append(s.pending, chunk[:n]...)

		if !synced {
			i := bytes.IndexByte(s.pending, '\n')
			if i < 0 {
				continue
			}
			s.pending = s.pending[i+1:]
			synced = true
		}

		if v, ok := s.takeReading(); ok {
			return checkReading(v, s.path)
		}
	}
	return 0, fmt.Errorf("%w: no reading from %s within %v", ErrSensor, s.path, s.timeout)
}

// takeReading consumes all complete lines and returns the last one that
// parses as a number.
func (s *SerialSensor) takeReading() (float64, bool) {
	end := bytes.LastIndexByte(s.pending, '\n')
	if end < 0 {
		return 0, false
	}
	lines := strings.Split(string(s.pending[:end]), "\n")
	s.pending = append(s.pending[:0], s.pending[end+1:]...)

	for i := len(lines) - 1; i >= 0; i-- {
		if v, ok := parseReading(lines[i]); ok {
			return v, true
		}
	}
	return 0, false
}

func parseReading(line string) (float64, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r' || r == ':' || r == '='
	})
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Close closes the port.
func (s *SerialSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
