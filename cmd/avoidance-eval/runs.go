package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"avoidance-eval/internal/store"
)

func runRuns(args []string, stdout io.Writer) error {
	fs := newFlagSet("runs")
	configPath := fs.String("config", "", "Path to YAML config")
	storePath := fs.String("store", "", "SQLite database (overrides store.path)")
	limit := fs.Int("limit", 20, "Number of runs to list (0 for all)")
	runID := fs.String("run", "", "Show the approaches of one run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	path := cfg.Store.Path
	if *storePath != "" {
		path = *storePath
	}
	if path == "" {
		return fmt.Errorf("store.path is required (or -store)")
	}

	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	if *runID != "" {
		pairs, err := s.Approaches(*runID)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "VEHICLE\tOTHER\tDISTANCE_M\tTIME_S")
		for _, p := range pairs {
			fmt.Fprintf(tw, "%d\t%d\t%.2f\t%.3f\n", p.Vehicle, p.OtherVehicle, p.DistanceM, float64(p.TimeUS)/1e6)
		}
		return tw.Flush()
	}

	runs, err := s.ListRuns(*limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tVEHICLES\tROUNDS\tEXPERIMENT")
	for _, r := range runs {
		status := r.Status
		if r.Error != "" {
			status += ": " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), status, r.Vehicles, r.Rounds, r.Experiment)
	}
	return tw.Flush()
}
