package history

import "errors"

var (
	// ErrCorruptStore means the persisted document could not be parsed.
	// The store is never reset when this happens.
	ErrCorruptStore = errors.New("history: store is corrupt")

	// ErrDegenerateHistory means two adjacent entries share a light level,
	// which pruning should have made impossible.
	ErrDegenerateHistory = errors.New("history: degenerate history")

	// ErrEmptyHistory means there is nothing to interpolate over.
	ErrEmptyHistory = errors.New("history: empty history")

	// ErrBrightnessOutOfRange rejects brightness values outside 0-100.
	ErrBrightnessOutOfRange = errors.New("history: brightness must be between 0 and 100")

	// ErrInvalidLight rejects NaN and infinite light levels.
	ErrInvalidLight = errors.New("history: light level must be a finite number")
)
