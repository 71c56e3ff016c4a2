package sim

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"avoidance-eval/internal/dataflash"
	"avoidance-eval/internal/plan"
	"avoidance-eval/internal/telemetry"
)

// LogName is the log file name SITL gives the first log of a boot.
const LogName = "00000001"

var gpsFormat = dataflash.MustFormat(0x82, "GPS", "QBIHBcLLefffB",
	"TimeUS", "Status", "GMS", "GWk", "NSats", "HDop", "Lat", "Lng", "Alt", "Spd", "GCrs", "VZ", "U")

// Options control synthetic experiment generation.
type Options struct {
	SampleInterval time.Duration
	Duration       time.Duration
	// ClockJitter bounds each vehicle's random clock offset.
	ClockJitter time.Duration
	Seed        int64
	// Text writes .log text logs instead of .BIN binary logs.
	Text bool
}

func (o Options) withDefaults() Options {
	if o.SampleInterval <= 0 {
		o.SampleInterval = 100 * time.Millisecond
	}
	if o.Duration <= 0 {
		o.Duration = 60 * time.Second
	}
	if o.ClockJitter < 0 {
		o.ClockJitter = 0
	}
	return o
}

// LogPath returns where WriteExperiment puts the log of vehicle id.
func LogPath(dir string, id int, text bool) string {
	ext := ".BIN"
	if text {
		ext = ".log"
	}
	return filepath.Join(dir, "vehicle_"+strconv.Itoa(id), "logs", LogName+ext)
}

// WriteExperiment writes p to dir/plan.json and one ground-truth log per
// vehicle, laid out as dir/vehicle_<id>/logs/00000001.BIN.
func WriteExperiment(dir string, p plan.Plan, opts Options) error {
	opts = opts.withDefaults()
	if opts.ClockJitter >= opts.SampleInterval {
		return fmt.Errorf("clock jitter %s must be less than sample interval %s", opts.ClockJitter, opts.SampleInterval)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := plan.Save(filepath.Join(dir, plan.FileName), p); err != nil {
		return err
	}

	offsets := clockOffsets(p.IDs(), opts)
	for _, id := range p.IDs() {
		f, err := NewFlight(p.Vehicles[id])
		if err != nil {
			return err
		}
		offset := offsets[id]
		path := LogPath(dir, id, opts.Text)
		n, err := writeLog(path, f, offset, opts)
		if err != nil {
			return fmt.Errorf("vehicle %d: %w", id, err)
		}
		log.Printf("sim vehicle %d: wrote %d samples to %s (clock offset %s)", id, n, path, offset)
	}
	return nil
}

// Samples returns the ground truth WriteExperiment would log for every
// vehicle of p, with the same clock offsets.
func Samples(p plan.Plan, opts Options) (map[int][]telemetry.Sample, error) {
	opts = opts.withDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	offsets := clockOffsets(p.IDs(), opts)
	out := make(map[int][]telemetry.Sample, len(p.Vehicles))
	for _, id := range p.IDs() {
		f, err := NewFlight(p.Vehicles[id])
		if err != nil {
			return nil, err
		}
		out[id] = f.Samples(offsets[id], opts.SampleInterval, opts.Duration)
	}
	return out, nil
}

// clockOffsets draws one offset below ClockJitter per vehicle, in id order.
func clockOffsets(ids []int, opts Options) map[int]time.Duration {
	seed := uint64(opts.Seed)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make(map[int]time.Duration, len(ids))
	for _, id := range ids {
		if opts.ClockJitter > 0 {
			out[id] = time.Duration(rng.Int64N(int64(opts.ClockJitter)))
		}
	}
	return out
}

func writeLog(path string, f *Flight, offset time.Duration, opts Options) (n int, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	w, err := dataflash.CreateWriter(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	if err := w.Define(dataflash.SIMFormat); err != nil {
		return 0, err
	}
	if err := w.Define(gpsFormat); err != nil {
		return 0, err
	}

	for t := offset; t <= opts.Duration; t += opts.SampleInterval {
		st := f.StateAt(t)
		p := st.Position
		yaw := math.Mod(st.YawDeg+360, 360)
		half := yaw * math.Pi / 360
		ts := float64(t.Microseconds())

		if err := w.Write(dataflash.SIMFormat.Name,
			ts, 0, 0, yaw, p.AltM, p.LatDeg, p.LonDeg,
			math.Cos(half), 0, 0, math.Sin(half)); err != nil {
			return n, err
		}
		// GPS shares the log so readers must filter for ground truth.
		if err := w.Write(gpsFormat.Name,
			ts, 3, 0, 0, 10, 0.8, p.LatDeg, p.LonDeg, p.AltM, 0, yaw, 0, 1); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
