package proximity

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"avoidance-eval/internal/geo"
	"avoidance-eval/internal/telemetry"
)

// fixedCursor always reports the same next sample.
type fixedCursor struct {
	ts  int64
	pos geo.Position
	err error
}

func (c *fixedCursor) PeekTime() (int64, error)            { return c.ts, c.err }
func (c *fixedCursor) PeekPosition() (geo.Position, error) { return c.pos, c.err }

func sampleAt(ts int64, lonDeg float64) telemetry.Sample {
	return telemetry.Sample{TimeUS: ts, Position: geo.Position{LonDeg: lonDeg}}
}

func TestObserve_FirstObservationRecorded(t *testing.T) {
	cur := &fixedCursor{ts: 1000}
	tr := NewTracker(0, cur, 0)

	updated, err := tr.Observe(7, sampleAt(1000, 0.0001))
	if err != nil {
		t.Fatalf("Observe() error: %v", err)
	}
	if !updated {
		t.Fatalf("expected first observation to update")
	}
	want := map[int]Approach{7: {
		DistanceM: geo.Distance(geo.Position{LonDeg: 0.0001}, geo.Position{}),
		TimeUS:    1000,
		This:      geo.Position{},
		Other:     geo.Position{LonDeg: 0.0001},
	}}
	if diff := cmp.Diff(want, tr.Report()); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestObserve_MonotonicMinimum(t *testing.T) {
	cur := &fixedCursor{}
	tr := NewTracker(1, cur, DefaultTimeDeltaUS)

	lons := []float64{0.003, 0.001, 0.002, 0.0005, 0.004, 0.0005}
	minSeen := -1.0
	for i, lon := range lons {
		cur.ts = int64(i) * 20_000
		s := sampleAt(cur.ts+10_000, lon)
		if _, err := tr.Observe(2, s); err != nil {
			t.Fatalf("Observe() error: %v", err)
		}
		d := geo.Distance(s.Position, cur.pos)
		if minSeen < 0 || d < minSeen {
			minSeen = d
		}
		got := tr.Report()[2].DistanceM
		if got > d {
			t.Fatalf("step %d: stored %v > computed %v", i, got, d)
		}
		if got != minSeen {
			t.Fatalf("step %d: stored %v want running minimum %v", i, got, minSeen)
		}
	}
	// Equal distance does not overwrite the earlier record.
	if got := tr.Report()[2].TimeUS; got != 3*20_000+10_000 {
		t.Fatalf("time=%d want first minimum time %d", got, 3*20_000+10_000)
	}
}

func TestObserve_ThresholdExclusion(t *testing.T) {
	cur := &fixedCursor{ts: 100_000}
	tr := NewTracker(0, cur, DefaultTimeDeltaUS)

	if _, err := tr.Observe(3, sampleAt(100_000, 0.01)); err != nil {
		t.Fatalf("Observe() error: %v", err)
	}
	before := tr.Report()

	// Much closer, but 50.001ms away in either direction.
	for _, ts := range []int64{150_001, 49_999, 1_000_000} {
		updated, err := tr.Observe(3, sampleAt(ts, 0))
		if err != nil {
			t.Fatalf("Observe() error: %v", err)
		}
		if updated {
			t.Fatalf("t=%d: expected no update beyond the time delta", ts)
		}
	}
	if diff := cmp.Diff(before, tr.Report()); diff != "" {
		t.Fatalf("record changed (-before +after):\n%s", diff)
	}

	// Exactly 50ms is still comparable.
	updated, err := tr.Observe(3, sampleAt(150_000, 0))
	if err != nil || !updated {
		t.Fatalf("Observe() at +50ms updated=%v err=%v want true,nil", updated, err)
	}
}

func TestObserve_ThresholdExclusionOnFirstSight(t *testing.T) {
	tr := NewTracker(0, &fixedCursor{ts: 0}, DefaultTimeDeltaUS)
	if _, err := tr.Observe(4, sampleAt(200_000, 0)); err != nil {
		t.Fatalf("Observe() error: %v", err)
	}
	if _, ok := tr.Report()[4]; ok {
		t.Fatalf("expected no record for a sample outside the time delta")
	}
}

func TestObserve_ExhaustedCursor(t *testing.T) {
	tr := NewTracker(7, &fixedCursor{err: telemetry.ErrOutOfSamples}, 0)
	_, err := tr.Observe(1, sampleAt(0, 0))
	if !errors.Is(err, telemetry.ErrOutOfSamples) {
		t.Fatalf("err=%v want ErrOutOfSamples", err)
	}
	if !strings.HasPrefix(err.Error(), "vehicle 7: ") {
		t.Fatalf("err=%q should name vehicle 7", err)
	}
}

func TestReport_IsACopy(t *testing.T) {
	tr := NewTracker(0, &fixedCursor{}, 0)
	if _, err := tr.Observe(1, sampleAt(0, 0.001)); err != nil {
		t.Fatalf("Observe() error: %v", err)
	}
	r := tr.Report()
	delete(r, 1)
	if _, ok := tr.Report()[1]; !ok {
		t.Fatalf("mutating the report changed the tracker")
	}
}
