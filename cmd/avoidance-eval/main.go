package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avoidance-eval/internal/config"
	"avoidance-eval/internal/experiment"
	"avoidance-eval/internal/report"
	"avoidance-eval/internal/store"
)

const usage = `usage:
  avoidance-eval [-config file] <experiment-dir>
  avoidance-eval analyze [flags] <experiment-dir>
  avoidance-eval summary <log-file>
  avoidance-eval plan [flags]
  avoidance-eval synth [flags] [experiment-dir]
  avoidance-eval runs [flags]
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "analyze":
			return runAnalyze(ctx, args[1:], stdout)
		case "summary":
			return runSummary(args[1:], stdout)
		case "plan":
			return runPlan(args[1:], stdout)
		case "synth":
			return runSynth(args[1:], stdout)
		case "runs":
			return runRuns(args[1:], stdout)
		case "help":
			fmt.Fprint(stdout, usage)
			return nil
		}
	}
	return runAnalyze(ctx, args, stdout)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	return fs
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func runAnalyze(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("analyze")
	configPath := fs.String("config", "", "Path to YAML config")
	format := fs.String("format", "", "Output format: text or json (overrides report.format)")
	timeDelta := fs.Duration("time-delta", 0, "Simultaneity window (overrides analysis.time_delta)")
	workers := fs.Int("workers", 0, "Concurrent log readers (overrides analysis.setup_workers)")
	plotPath := fs.String("plot", "", "Write a PNG bar chart to this path")
	htmlPath := fs.String("html", "", "Write an HTML bar chart to this path")
	storePath := fs.String("store", "", "Record the run in this SQLite database")
	verbose := fs.Bool("verbose", false, "Log every skipped vehicle")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one experiment directory, got %d arguments", fs.NArg())
	}
	dir := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *format != "" {
		cfg.Report.Format = *format
	}
	if *timeDelta > 0 {
		cfg.Analysis.TimeDelta = *timeDelta
	}
	if *workers > 0 {
		cfg.Analysis.SetupWorkers = *workers
	}
	if *plotPath != "" {
		cfg.Report.PlotPath = *plotPath
	}
	if *htmlPath != "" {
		cfg.Report.HTMLPath = *htmlPath
	}
	if *storePath != "" {
		cfg.Store.Enable = true
		cfg.Store.Path = *storePath
	}
	if *verbose {
		cfg.Analysis.Verbose = true
	}
	if cfg.Report.Format != "text" && cfg.Report.Format != "json" {
		return fmt.Errorf("unknown format %q", cfg.Report.Format)
	}

	opts := experiment.Options{
		TimeDeltaUS:  cfg.Analysis.TimeDelta.Microseconds(),
		SetupWorkers: cfg.Analysis.SetupWorkers,
		MessageType:  cfg.Analysis.MessageType,
		LogGlobs:     cfg.Analysis.LogGlobs,
		Verbose:      cfg.Analysis.Verbose,
	}

	var runs *store.Store
	var runID string
	if cfg.Store.Enable {
		runs, err = store.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("store open failed: %w", err)
		}
		defer runs.Close()
		r, err := runs.CreateRun(dir, opts.TimeDeltaUS)
		if err != nil {
			return err
		}
		runID = r.ID
	}

	log.Printf("analyze dir=%s time_delta=%s workers=%d", dir, cfg.Analysis.TimeDelta, cfg.Analysis.SetupWorkers)
	start := time.Now()
	rep, runErr := analyze(ctx, dir, opts)
	log.Printf("analyze finished in %s", time.Since(start).Round(time.Millisecond))

	if runs != nil {
		if len(rep.Vehicles) > 0 {
			if err := runs.InsertApproaches(runID, rep); err != nil {
				log.Printf("store approaches failed: %v", err)
			}
		}
		if err := runs.CompleteRun(runID, rep, runErr); err != nil {
			log.Printf("store complete failed: %v", err)
		}
		log.Printf("store run=%s", runID)
	}
	if rep.Vehicles == nil {
		return runErr
	}

	if err := render(stdout, cfg.Report, rep); err != nil {
		return err
	}
	return runErr
}

func analyze(ctx context.Context, dir string, opts experiment.Options) (experiment.Report, error) {
	a, err := experiment.New(dir, opts)
	if err != nil {
		return experiment.Report{}, err
	}
	return a.Run(ctx)
}

func render(stdout io.Writer, cfg config.ReportConfig, rep experiment.Report) error {
	var err error
	switch cfg.Format {
	case "json":
		err = report.WriteJSON(stdout, rep)
	default:
		err = report.WriteText(stdout, rep)
	}
	if err != nil {
		return err
	}

	if len(report.Unordered(rep)) == 0 {
		if cfg.PlotPath != "" || cfg.HTMLPath != "" {
			log.Printf("no approaches, skipping charts")
		}
		return nil
	}
	if cfg.PlotPath != "" {
		if err := report.SavePlot(cfg.PlotPath, rep); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		log.Printf("plot written path=%s", cfg.PlotPath)
	}
	if cfg.HTMLPath != "" {
		f, err := os.Create(cfg.HTMLPath)
		if err != nil {
			return err
		}
		if err := report.WriteHTML(f, rep); err != nil {
			f.Close()
			return fmt.Errorf("html: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("html written path=%s", cfg.HTMLPath)
	}
	return nil
}
