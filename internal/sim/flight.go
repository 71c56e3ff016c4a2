// Package sim produces deterministic ground-truth flights from experiment
// plans and writes them as per-vehicle DataFlash logs.
package sim

import (
	"fmt"
	"math"
	"sort"
	"time"

	"avoidance-eval/internal/geo"
	"avoidance-eval/internal/plan"
	"avoidance-eval/internal/telemetry"
)

// Keyframe is a time-stamped position. YawDeg is the heading held while
// flying into the keyframe.
type Keyframe struct {
	T        time.Duration
	Position geo.Position
	YawDeg   float64
}

// State is the computed vehicle state at a time.
type State struct {
	Position geo.Position
	YawDeg   float64
}

// Flight is the validated, runtime representation of one vehicle plan: a
// vertical takeoff over home to the first waypoint's altitude, then straight
// legs at each waypoint's speed. Plans with more than one waypoint repeat the
// waypoint circuit forever; single-waypoint plans hold at the waypoint.
type Flight struct {
	keyframes []Keyframe
	// Circuit start and length; zero period means hold at the last keyframe.
	loopStart time.Duration
	period    time.Duration
}

// NewFlight validates v and builds its keyframes.
func NewFlight(v plan.VehiclePlan) (*Flight, error) {
	wps := v.Waypoints()
	if len(wps) == 0 {
		return nil, fmt.Errorf("vehicle %d: flight plan is empty", v.Instance)
	}
	for i, w := range wps {
		if w.SpeedTo <= 0 {
			return nil, fmt.Errorf("vehicle %d: waypoint %d speed must be > 0", v.Instance, i)
		}
	}

	home := v.Home.Position()
	f := &Flight{}
	f.keyframes = append(f.keyframes, Keyframe{Position: home, YawDeg: v.Home.HeadingDeg()})

	// Vertical takeoff at the first leg's speed.
	climb := home
	climb.AltM = wps[0].Point[2]
	f.legTo(climb, wps[0].SpeedTo)

	for i, w := range wps {
		f.legTo(w.Point.Position(), w.SpeedTo)
		if i == 0 {
			f.loopStart = f.end()
		}
	}
	if len(wps) > 1 {
		f.legTo(wps[0].Point.Position(), wps[0].SpeedTo)
		f.period = f.end() - f.loopStart
	}
	return f, nil
}

func (f *Flight) legTo(p geo.Position, speedMS float64) {
	last := f.keyframes[len(f.keyframes)-1]
	d := geo.Distance(last.Position, p)
	if d == 0 {
		return
	}
	yaw := last.YawDeg
	if geo.HorizontalDistance(last.Position, p) > 0 {
		yaw = geo.Bearing(last.Position, p)
	}
	dt := time.Duration(d / speedMS * float64(time.Second))
	f.keyframes = append(f.keyframes, Keyframe{T: last.T + dt, Position: p, YawDeg: yaw})
}

func (f *Flight) end() time.Duration {
	return f.keyframes[len(f.keyframes)-1].T
}

// Keyframes returns a copy of the flight's keyframes (one circuit).
func (f *Flight) Keyframes() []Keyframe {
	return append([]Keyframe(nil), f.keyframes...)
}

// Looping reports whether the flight repeats its waypoint circuit.
func (f *Flight) Looping() bool { return f.period > 0 }

// StateAt computes the state at elapsed flight time. Negative times clamp to
// the start; times past the last keyframe wrap around the circuit or hold.
func (f *Flight) StateAt(elapsed time.Duration) State {
	if elapsed < 0 {
		elapsed = 0
	}
	if end := f.end(); elapsed > end {
		if f.period > 0 {
			elapsed = f.loopStart + (elapsed-f.loopStart)%f.period
		} else {
			elapsed = end
		}
	}

	kf0, kf1, alpha := selectSegment(f.keyframes, elapsed)
	return State{
		Position: geo.Lerp(kf0.Position, kf1.Position, alpha),
		YawDeg:   kf1.YawDeg,
	}
}

// PositionAt is StateAt without the attitude.
func (f *Flight) PositionAt(elapsed time.Duration) geo.Position {
	return f.StateAt(elapsed).Position
}

// Samples returns ground-truth samples every interval from offset up to and
// including duration. offset models a vehicle clock that is not aligned with
// the others.
func (f *Flight) Samples(offset, interval, duration time.Duration) []telemetry.Sample {
	if interval <= 0 || duration < offset {
		return nil
	}
	n := int((duration-offset)/interval) + 1
	out := make([]telemetry.Sample, 0, n)
	for t := offset; t <= duration; t += interval {
		out = append(out, telemetry.Sample{TimeUS: t.Microseconds(), Position: f.PositionAt(t)})
	}
	return out
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	return k0, k1, math.Max(0, math.Min(1, alpha))
}
