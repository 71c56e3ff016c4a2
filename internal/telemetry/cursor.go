package telemetry

import "avoidance-eval/internal/geo"

// Cursor consumes a sample sequence front to back. It has a single consumer
// and no locking.
type Cursor struct {
	samples []Sample
	next    int
}

// NewCursor wraps samples. The slice must not be modified afterwards.
func NewCursor(samples []Sample) *Cursor {
	return &Cursor{samples: samples}
}

// PeekTime returns the timestamp of the next unconsumed sample.
func (c *Cursor) PeekTime() (int64, error) {
	if c.next >= len(c.samples) {
		return 0, ErrOutOfSamples
	}
	return c.samples[c.next].TimeUS, nil
}

// PeekPosition returns the position of the next unconsumed sample.
func (c *Cursor) PeekPosition() (geo.Position, error) {
	if c.next >= len(c.samples) {
		return geo.Position{}, ErrOutOfSamples
	}
	return c.samples[c.next].Position, nil
}

// Take returns the next sample and advances. ok is false once the sequence is
// exhausted; that is the normal end of the stream, not an error.
func (c *Cursor) Take() (s Sample, ok bool) {
	if c.next >= len(c.samples) {
		return Sample{}, false
	}
	s = c.samples[c.next]
	c.next++
	return s, true
}

// Remaining returns the number of unconsumed samples.
func (c *Cursor) Remaining() int {
	return len(c.samples) - c.next
}

// Len returns the total sequence length.
func (c *Cursor) Len() int {
	return len(c.samples)
}
