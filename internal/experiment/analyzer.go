// Package experiment runs the closest-approach analysis over every vehicle of
// one experiment.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"avoidance-eval/internal/dataflash"
	"avoidance-eval/internal/proximity"
	"avoidance-eval/internal/telemetry"
)

// Options control discovery, setup and the sweep.
type Options struct {
	// TimeDeltaUS is the largest timestamp gap treated as simultaneous.
	// Zero selects proximity.DefaultTimeDeltaUS.
	TimeDeltaUS int64
	// SetupWorkers bounds concurrent log extraction. Log reads mostly contend
	// on one disk, so the default is 1.
	SetupWorkers int
	// MessageType is the ground-truth message (telemetry.GroundTruthType when empty).
	MessageType string
	// LogGlobs locate each vehicle's log (DefaultLogGlobs when empty).
	LogGlobs []string
	// Verbose logs every vehicle skipped by the sweep.
	Verbose bool

	// Open opens one vehicle log; dataflash.Open when nil.
	Open func(path string) (dataflash.Source, error)
}

func (o Options) withDefaults() Options {
	if o.TimeDeltaUS <= 0 {
		o.TimeDeltaUS = proximity.DefaultTimeDeltaUS
	}
	if o.SetupWorkers <= 0 {
		o.SetupWorkers = 1
	}
	if o.MessageType == "" {
		o.MessageType = telemetry.GroundTruthType
	}
	if len(o.LogGlobs) == 0 {
		o.LogGlobs = DefaultLogGlobs
	}
	if o.Open == nil {
		o.Open = dataflash.Open
	}
	return o
}

// Vehicle is one vehicle of the experiment: its log, cursor and tracker.
type Vehicle struct {
	ID      int
	Dir     string
	LogPath string
	// Candidates lists every matching log; more than one is ambiguous.
	Candidates []string

	cursor  *telemetry.Cursor
	tracker *proximity.Tracker
}

// Samples returns the number of extracted samples (0 before setup).
func (v *Vehicle) Samples() int {
	if v.cursor == nil {
		return 0
	}
	return v.cursor.Len()
}

// Analyzer owns every vehicle of one experiment.
type Analyzer struct {
	dir      string
	opts     Options
	vehicles map[int]*Vehicle
	ids      []int
	stats    SweepStats
}

// New discovers the vehicles under dir and selects one log for each. Logs are
// not read until Setup.
func New(dir string, opts Options) (*Analyzer, error) {
	opts = opts.withDefaults()
	dirs, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{dir: dir, opts: opts, vehicles: make(map[int]*Vehicle, len(dirs))}
	for _, vd := range dirs {
		path, candidates, err := SelectLog(vd.Path, opts.LogGlobs)
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", vd.ID, err)
		}
		if len(candidates) > 1 {
			log.Printf("vehicle %d: %d matching logs in %s, using last in sort order %s", vd.ID, len(candidates), vd.Path, path)
		}
		a.add(&Vehicle{ID: vd.ID, Dir: vd.Path, LogPath: path, Candidates: candidates})
	}
	return a, nil
}

// FromSamples builds a ready-to-sweep analyzer over in-memory sample sequences.
func FromSamples(name string, samples map[int][]telemetry.Sample, opts Options) *Analyzer {
	opts = opts.withDefaults()
	a := &Analyzer{dir: name, opts: opts, vehicles: make(map[int]*Vehicle, len(samples))}
	for id, ss := range samples {
		v := &Vehicle{ID: id}
		a.attach(v, ss)
		a.add(v)
	}
	return a
}

func (a *Analyzer) add(v *Vehicle) {
	a.vehicles[v.ID] = v
	a.ids = append(a.ids, v.ID)
	sort.Ints(a.ids)
}

func (a *Analyzer) attach(v *Vehicle, samples []telemetry.Sample) {
	v.cursor = telemetry.NewCursor(samples)
	v.tracker = proximity.NewTracker(v.ID, v.cursor, a.opts.TimeDeltaUS)
}

// Vehicles returns the vehicles sorted by id.
func (a *Analyzer) Vehicles() []*Vehicle {
	out := make([]*Vehicle, 0, len(a.ids))
	for _, id := range a.ids {
		out = append(out, a.vehicles[id])
	}
	return out
}

// Setup extracts every vehicle's samples. Vehicles are independent, so up to
// SetupWorkers logs are read at once. The first failure aborts the experiment.
func (a *Analyzer) Setup(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.SetupWorkers)
	for _, id := range a.ids {
		v := a.vehicles[id]
		if v.cursor != nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			samples, err := a.load(v)
			if err != nil {
				return fmt.Errorf("vehicle %d: %w", v.ID, err)
			}
			a.attach(v, samples)
			log.Printf("vehicle %d: %d samples from %s", v.ID, len(samples), v.LogPath)
			return nil
		})
	}
	return g.Wait()
}

func (a *Analyzer) load(v *Vehicle) ([]telemetry.Sample, error) {
	src, err := a.opts.Open(v.LogPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return telemetry.Extract(src, a.opts.MessageType)
}

// Run is Setup followed by Sweep. The report is returned even when the sweep
// fails, holding whatever was accumulated.
func (a *Analyzer) Run(ctx context.Context) (Report, error) {
	if err := a.Setup(ctx); err != nil {
		return Report{}, err
	}
	_, err := a.Sweep()
	return a.Report(), err
}

// Report snapshots every tracker.
func (a *Analyzer) Report() Report {
	r := Report{
		Experiment:  a.dir,
		TimeDeltaUS: a.opts.TimeDeltaUS,
		Vehicles:    make(map[int]map[int]proximity.Approach, len(a.ids)),
		Stats:       a.stats,
	}
	for _, id := range a.ids {
		v := a.vehicles[id]
		if len(v.Candidates) > 1 {
			if r.AmbiguousLogs == nil {
				r.AmbiguousLogs = make(map[int][]string)
			}
			r.AmbiguousLogs[id] = append([]string(nil), v.Candidates...)
		}
		if v.tracker == nil {
			r.Vehicles[id] = map[int]proximity.Approach{}
			continue
		}
		r.Vehicles[id] = v.tracker.Report()
	}
	return r
}

var errNotSetUp = errors.New("experiment: Setup has not completed")
