package history

import (
	"fmt"
	"math"
	"sort"
)

// Interpolate returns the brightness recommended for light according to h.
//
// Below the dimmest entry and above the brightest entry the result is clamped
// to that entry's brightness. In between, brightness is interpolated linearly
// between the two neighbouring entries and rounded half up.
func Interpolate(h History, light float64) (int, error) {
	if len(h) == 0 {
		return 0, ErrEmptyHistory
	}
	if math.IsNaN(light) || math.IsInf(light, 0) {
		return 0, ErrInvalidLight
	}

	g := sort.Search(len(h), func(i int) bool {
		return h[i].Light >= light
	})

	if g >= len(h) {
		return h[g-1].Brightness, nil
	}
	if g == 0 {
		return h[0].Brightness, nil
	}

	lower, upper := h[g-1], h[g]
	span := upper.Light - lower.Light
	if span <= 0 || math.IsNaN(span) {
		return 0, fmt.Errorf("%w: entries %d and %d have light levels %v and %v",
			ErrDegenerateHistory, g-1, g, lower.Light, upper.Light)
	}

	t := (light - lower.Light) / span
	v := float64(lower.Brightness) + t*float64(upper.Brightness-lower.Brightness)
	return roundHalfUp(v), nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
