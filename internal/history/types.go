// Package history maintains the learned mapping from ambient light level to
// preferred monitor brightness.
//
// Two histories are kept. Newest reflects the most recent adjustment and may
// still be revised; Stable is what new adjustments are folded into. When no
// adjustment has been recorded for the promotion window, Newest becomes the
// new Stable before the next observation is folded in. This lets a burst of
// exploratory adjustments be undone without corrupting the long term curve.
//
// Each History is sorted ascending by brightness with unique brightness
// values. Folding prunes entries whose light level contradicts the new
// observation, so light levels ascend with brightness as well, which is what
// Interpolate relies on.
package history

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

// Brightness bounds, in percent.
const (
	MinBrightness = 0
	MaxBrightness = 100
)

// Observation is one recorded (brightness, ambient light) pair.
// It is encoded in JSON as the array [brightness, light].
type Observation struct {
	Brightness int
	Light      float64
}

// MarshalJSON encodes the observation as [brightness, light].
func (o Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{o.Brightness, o.Light})
}

// UnmarshalJSON decodes an observation from [brightness, light].
func (o *Observation) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("observation: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("observation: expected 2 elements, got %d", len(raw))
	}
	if raw[0] != math.Trunc(raw[0]) {
		return fmt.Errorf("observation: brightness %v is not an integer", raw[0])
	}
	o.Brightness = int(raw[0])
	o.Light = raw[1]
	return nil
}

// History is a list of observations sorted ascending by brightness.
type History []Observation

// Clone returns a copy of h that shares no storage with it.
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	return slices.Clone(h)
}

// Validate reports whether h is strictly ascending by brightness and every
// brightness lies within bounds.
func (h History) Validate() error {
	for i, o := range h {
		if o.Brightness < MinBrightness || o.Brightness > MaxBrightness {
			return fmt.Errorf("entry %d: brightness %d out of range", i, o.Brightness)
		}
		if math.IsNaN(o.Light) || math.IsInf(o.Light, 0) {
			return fmt.Errorf("entry %d: light level is not finite", i)
		}
		if i > 0 && h[i-1].Brightness >= o.Brightness {
			return fmt.Errorf("entry %d: brightness %d not above previous %d", i, o.Brightness, h[i-1].Brightness)
		}
	}
	return nil
}

// Document is the persisted unit: both histories and the time of the last
// recorded observation.
type Document struct {
	LastUpdated time.Time
	Newest      History
	Stable      History
}

// NewDocument returns the bootstrap document: full brightness at light 0.
func NewDocument(now time.Time) Document {
	return Document{
		LastUpdated: now,
		Newest:      History{{Brightness: 100, Light: 0}},
		Stable:      History{{Brightness: 100, Light: 0}},
	}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	return Document{
		LastUpdated: d.LastUpdated,
		Newest:      d.Newest.Clone(),
		Stable:      d.Stable.Clone(),
	}
}

// legacyTimeLayout is the zone-less ISO-8601 form written by older releases.
const legacyTimeLayout = "2006-01-02T15:04:05.999999999"

type documentJSON struct {
	LastUpdated string  `json:"last_updated"`
	Newest      History `json:"newest"`
	Stable      History `json:"stable"`
}

// MarshalJSON encodes the document with an RFC 3339 last_updated.
func (d Document) MarshalJSON() ([]byte, error) {
	doc := documentJSON{
		Newest: d.Newest,
		Stable: d.Stable,
	}
	if doc.Newest == nil {
		doc.Newest = History{}
	}
	if doc.Stable == nil {
		doc.Stable = History{}
	}
	if !d.LastUpdated.IsZero() {
		doc.LastUpdated = d.LastUpdated.Format(time.RFC3339Nano)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a document. last_updated may be RFC 3339 or the
// legacy zone-less form, which is read as local time.
func (d *Document) UnmarshalJSON(data []byte) error {
	var doc documentJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	var ts time.Time
	if doc.LastUpdated != "" {
		var err error
		ts, err = parseTimestamp(doc.LastUpdated)
		if err != nil {
			return err
		}
	}

	d.LastUpdated = ts
	d.Newest = doc.Newest
	d.Stable = doc.Stable
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(legacyTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("last_updated: %w", err)
	}
	return ts, nil
}
