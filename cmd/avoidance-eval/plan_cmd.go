package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"avoidance-eval/internal/experiment"
	"avoidance-eval/internal/plan"
	"avoidance-eval/internal/sim"
)

type planFlags struct {
	kind      *string
	vehicles  *int
	waypoints *int
	lines     *int
	avgDist   *float64
	variance  *float64
	seed      *int64
}

func addPlanFlags(fs *flag.FlagSet) planFlags {
	return planFlags{
		kind:      fs.String("type", "hover_line", "Plan type: random or hover_line"),
		vehicles:  fs.Int("vehicles", 2, "random: number of vehicles"),
		waypoints: fs.Int("waypoints", 3, "random: waypoints per vehicle"),
		lines:     fs.Int("lines", 1, "hover_line: vehicles flying through the hover point"),
		avgDist:   fs.Float64("dist", 30, "hover_line: mean start distance from the hover point (m)"),
		variance:  fs.Float64("variance", 0, "hover_line: start distance variance (m^2)"),
		seed:      fs.Int64("seed", 0, "Random seed (0 uses the clock)"),
	}
}

func (f planFlags) build() (plan.Plan, error) {
	seed := uint64(*f.seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	switch *f.kind {
	case "random":
		return plan.Random{Vehicles: *f.vehicles, Waypoints: *f.waypoints, Rand: rng}.Build(), nil
	case "hover_line", "Hover_Line":
		return plan.HoverLine{Lines: *f.lines, AvgDistM: *f.avgDist, DistVariance: *f.variance, Rand: rng}.Build()
	default:
		return plan.Plan{}, fmt.Errorf("unknown plan type %q", *f.kind)
	}
}

func runPlan(args []string, stdout io.Writer) error {
	fs := newFlagSet("plan")
	pf := addPlanFlags(fs)
	root := fs.String("root", "experiments", "Directory holding experiment_<n> directories")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := pf.build()
	if err != nil {
		return err
	}
	dir, err := plan.NextExperimentDir(*root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, plan.FileName)
	if err := plan.Save(path, p); err != nil {
		return err
	}
	log.Printf("plan vehicles=%d", len(p.Vehicles))
	fmt.Fprintln(stdout, path)
	return nil
}

func runSynth(args []string, stdout io.Writer) error {
	fs := newFlagSet("synth")
	configPath := fs.String("config", "", "Path to YAML config")
	planPath := fs.String("plan", "", "Existing plan.json (otherwise one is generated)")
	root := fs.String("root", "experiments", "Directory holding experiment_<n> directories")
	analyze := fs.Bool("analyze", false, "Also sweep the generated ground truth in memory and print the report")
	format := fs.String("format", "", "Report format with -analyze: text or json (overrides report.format)")
	pf := addPlanFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return fmt.Errorf("expected at most one experiment directory, got %d arguments", fs.NArg())
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	var p plan.Plan
	if *planPath != "" {
		p, err = plan.Load(*planPath)
	} else {
		p, err = pf.build()
	}
	if err != nil {
		return err
	}

	dir := fs.Arg(0)
	if dir == "" {
		dir, err = plan.NextExperimentDir(*root)
		if err != nil {
			return err
		}
	}

	opts := sim.Options{
		SampleInterval: cfg.Synth.SampleInterval,
		Duration:       cfg.Synth.Duration,
		ClockJitter:    cfg.Synth.ClockJitter,
		Seed:           cfg.Synth.Seed,
		Text:           cfg.Synth.LogFormat == "log",
	}
	if err := sim.WriteExperiment(dir, p, opts); err != nil {
		return err
	}
	fmt.Fprintln(stdout, dir)
	if !*analyze {
		return nil
	}

	if *format != "" {
		cfg.Report.Format = *format
	}
	samples, err := sim.Samples(p, opts)
	if err != nil {
		return err
	}
	a := experiment.FromSamples(dir, samples, experiment.Options{
		TimeDeltaUS: cfg.Analysis.TimeDelta.Microseconds(),
		Verbose:     cfg.Analysis.Verbose,
	})
	_, sweepErr := a.Sweep()
	if err := render(stdout, cfg.Report, a.Report()); err != nil {
		return err
	}
	return sweepErr
}
