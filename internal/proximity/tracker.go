// Package proximity keeps, for one vehicle, the closest approach observed to
// every other vehicle.
package proximity

import (
	"fmt"

	"avoidance-eval/internal/geo"
	"avoidance-eval/internal/telemetry"
)

// DefaultTimeDeltaUS is the largest timestamp gap (50ms) at which two
// vehicles' samples are treated as simultaneous.
const DefaultTimeDeltaUS int64 = 50_000

// Approach is the closest approach of this vehicle to one other vehicle.
type Approach struct {
	DistanceM float64      `json:"distance_m"`
	TimeUS    int64        `json:"time_us"`
	This      geo.Position `json:"this"`
	Other     geo.Position `json:"other"`
}

// Cursor is the read side of this vehicle's sample cursor.
type Cursor interface {
	PeekTime() (int64, error)
	PeekPosition() (geo.Position, error)
}

// Tracker compares samples from other vehicles against this vehicle's next
// unconsumed sample. It never advances the cursor.
type Tracker struct {
	id          int
	cursor      Cursor
	timeDeltaUS int64

	approaches map[int]Approach
}

// NewTracker returns a tracker for vehicle id. timeDeltaUS <= 0 selects
// DefaultTimeDeltaUS.
func NewTracker(id int, cursor Cursor, timeDeltaUS int64) *Tracker {
	if timeDeltaUS <= 0 {
		timeDeltaUS = DefaultTimeDeltaUS
	}
	return &Tracker{
		id:          id,
		cursor:      cursor,
		timeDeltaUS: timeDeltaUS,
		approaches:  make(map[int]Approach),
	}
}

// Observe compares a sample from vehicle otherID with this vehicle's next
// sample. Samples further apart in time than the time delta are ignored. The
// record for otherID is replaced on first sight or on a strictly smaller
// distance; updated reports whether that happened.
//
// If this vehicle's cursor is exhausted the error wraps telemetry.ErrOutOfSamples.
func (t *Tracker) Observe(otherID int, s telemetry.Sample) (updated bool, err error) {
	ts, err := t.cursor.PeekTime()
	if err != nil {
		return false, fmt.Errorf("vehicle %d: %w", t.id, err)
	}
	if absDiff(ts, s.TimeUS) > t.timeDeltaUS {
		return false, nil
	}
	here, err := t.cursor.PeekPosition()
	if err != nil {
		return false, fmt.Errorf("vehicle %d: %w", t.id, err)
	}

	d := geo.Distance(s.Position, here)
	cur, seen := t.approaches[otherID]
	if seen && d >= cur.DistanceM {
		return false, nil
	}
	t.approaches[otherID] = Approach{
		DistanceM: d,
		TimeUS:    s.TimeUS,
		This:      here,
		Other:     s.Position,
	}
	return true, nil
}

// Report returns a copy of the closest approaches, keyed by other vehicle id.
func (t *Tracker) Report() map[int]Approach {
	out := make(map[int]Approach, len(t.approaches))
	for k, v := range t.approaches {
		out[k] = v
	}
	return out
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
