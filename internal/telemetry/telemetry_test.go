package telemetry

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"avoidance-eval/internal/dataflash"
	"avoidance-eval/internal/geo"
)

// fakeSource replays a fixed message list and records rewinds.
type fakeSource struct {
	msgs    []dataflash.Message
	pos     int
	rewinds int
}

func (f *fakeSource) Rewind() error {
	f.pos = 0
	f.rewinds++
	return nil
}

func (f *fakeSource) Next(types ...string) (dataflash.Message, error) {
	for f.pos < len(f.msgs) {
		m := f.msgs[f.pos]
		f.pos++
		if len(types) == 0 || m.Type == types[0] {
			return m, nil
		}
	}
	return dataflash.Message{}, io.EOF
}

func sim(ts, lat, lon, alt float64) dataflash.Message {
	return dataflash.NewMessage("SIM", map[string]float64{"TimeUS": ts, "Lat": lat, "Lng": lon, "Alt": alt})
}

func gps(ts, lat, lon, alt float64) dataflash.Message {
	return dataflash.NewMessage("GPS", map[string]float64{"TimeUS": ts, "Lat": lat, "Lng": lon, "Alt": alt})
}

func TestExtract_GroundTruthOnly(t *testing.T) {
	src := &fakeSource{msgs: []dataflash.Message{
		sim(100, 1, 2, 3),
		gps(150, 9, 9, 9),
		sim(200, 1.5, 2.5, 3.5),
		sim(200, 1.5, 2.5, 3.5), // duplicates are kept
	}}

	got, err := Extract(src, "")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	want := []Sample{
		{TimeUS: 100, Position: geo.Position{LatDeg: 1, LonDeg: 2, AltM: 3}},
		{TimeUS: 200, Position: geo.Position{LatDeg: 1.5, LonDeg: 2.5, AltM: 3.5}},
		{TimeUS: 200, Position: geo.Position{LatDeg: 1.5, LonDeg: 2.5, AltM: 3.5}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract()=%+v want %+v", got, want)
	}
}

func TestExtract_IdempotentAfterExternalConsumption(t *testing.T) {
	src := &fakeSource{msgs: []dataflash.Message{sim(1, 0, 0, 0), sim(2, 0, 0, 1), sim(3, 0, 0, 2)}}
	first, err := Extract(src, GroundTruthType)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if len(first) != 3 {
		t.Fatalf("first extract len=%d want 3", len(first))
	}

	// Someone else restarts the stream and reads part of it.
	if err := src.Rewind(); err != nil {
		t.Fatalf("Rewind() error: %v", err)
	}
	if _, err := src.Next("SIM"); err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if src.pos != 1 {
		t.Fatalf("pos=%d want 1 after partial read", src.pos)
	}

	second, err := Extract(src, GroundTruthType)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second extract differs: %+v vs %+v", second, first)
	}
	if src.rewinds != 3 {
		t.Fatalf("rewinds=%d want 3", src.rewinds)
	}
}

func TestExtract_MissingField(t *testing.T) {
	bad := dataflash.NewMessage("SIM", map[string]float64{"TimeUS": 1, "Lat": 0, "Lng": 0})
	_, err := Extract(&fakeSource{msgs: []dataflash.Message{bad}}, "")
	if err == nil {
		t.Fatalf("expected error for missing Alt")
	}
}

func TestCursor_PeekTakeRemaining(t *testing.T) {
	samples := []Sample{
		{TimeUS: 10, Position: geo.Position{LatDeg: 1}},
		{TimeUS: 20, Position: geo.Position{LatDeg: 2}},
	}
	c := NewCursor(samples)
	if c.Remaining() != 2 {
		t.Fatalf("remaining=%d want 2", c.Remaining())
	}
	ts, err := c.PeekTime()
	if err != nil || ts != 10 {
		t.Fatalf("PeekTime()=%d,%v want 10", ts, err)
	}
	// Peeking does not consume.
	pos, err := c.PeekPosition()
	if err != nil || pos.LatDeg != 1 {
		t.Fatalf("PeekPosition()=%+v,%v", pos, err)
	}

	s, ok := c.Take()
	if !ok || s.TimeUS != 10 {
		t.Fatalf("Take()=%+v,%v want t=10", s, ok)
	}
	if c.Remaining() != 1 {
		t.Fatalf("remaining=%d want 1", c.Remaining())
	}
	if ts, _ := c.PeekTime(); ts != 20 {
		t.Fatalf("PeekTime()=%d want 20", ts)
	}
}

func TestCursor_Exhaustion(t *testing.T) {
	c := NewCursor([]Sample{{TimeUS: 1}})
	if _, ok := c.Take(); !ok {
		t.Fatalf("first Take() ok=false")
	}
	if c.Remaining() != 0 {
		t.Fatalf("remaining=%d want 0", c.Remaining())
	}
	for i := 0; i < 3; i++ {
		s, ok := c.Take()
		if ok || s != (Sample{}) {
			t.Fatalf("Take() after end = %+v,%v want zero,false", s, ok)
		}
	}
	if c.Remaining() != 0 {
		t.Fatalf("remaining=%d want 0 after extra takes", c.Remaining())
	}
	if _, err := c.PeekTime(); !errors.Is(err, ErrOutOfSamples) {
		t.Fatalf("PeekTime() err=%v want ErrOutOfSamples", err)
	}
	if _, err := c.PeekPosition(); !errors.Is(err, ErrOutOfSamples) {
		t.Fatalf("PeekPosition() err=%v want ErrOutOfSamples", err)
	}
}
