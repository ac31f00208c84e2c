package history

import (
	"sort"
	"time"
)

// DefaultPromotionWindow is how long Newest must go untouched before it
// replaces Stable.
const DefaultPromotionWindow = 15 * time.Minute

// Insert folds obs into h and returns a new history. h is not modified.
//
// Entries below the insertion point survive only if their light level is
// strictly less than obs.Light, entries above it only if strictly greater.
// An entry with the same brightness as obs is replaced.
func Insert(h History, obs Observation) History {
	i := sort.Search(len(h), func(i int) bool {
		return h[i].Brightness >= obs.Brightness
	})

	out := make(History, 0, len(h)+1)
	for _, e := range h[:i] {
		if e.Light < obs.Light {
			out = append(out, e)
		}
	}

	out = append(out, obs)

	j := i
	if j < len(h) && h[j].Brightness == obs.Brightness {
		j++
	}
	for _, e := range h[j:] {
		if e.Light > obs.Light {
			out = append(out, e)
		}
	}

	return out
}

// ActiveStable returns the history new observations are folded into at now:
// Newest once window has elapsed since the last update, Stable otherwise.
// The boolean reports whether Newest was promoted.
func ActiveStable(doc Document, now time.Time, window time.Duration) (History, bool) {
	if !now.Before(doc.LastUpdated.Add(window)) {
		return doc.Newest, true
	}
	return doc.Stable, false
}

// Fold records obs in doc as of now and returns the resulting document along
// with whether Newest was promoted to Stable first. doc is not modified.
func Fold(doc Document, obs Observation, now time.Time, window time.Duration) (Document, bool) {
	stable, promoted := ActiveStable(doc, now, window)

	return Document{
		LastUpdated: now,
		Stable:      stable.Clone(),
		Newest:      Insert(stable, obs),
	}, promoted
}
