package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"avoidance-eval/internal/dataflash"
	"avoidance-eval/internal/telemetry"
)

type logSummary struct {
	Messages    int
	TypeCounts  map[string]int
	GroundTruth int
	FirstUS     int64
	LastUS      int64
	// SkippedBytes is only known for binary logs.
	SkippedBytes int
}

func (s logSummary) Span() time.Duration {
	if s.GroundTruth == 0 {
		return 0
	}
	return time.Duration(s.LastUS-s.FirstUS) * time.Microsecond
}

func summarizeLog(src dataflash.Source, truthType string) (logSummary, error) {
	s := logSummary{TypeCounts: map[string]int{}}
	if err := src.Rewind(); err != nil {
		return s, err
	}
	for {
		m, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s, err
		}
		s.Messages++
		s.TypeCounts[m.Type]++

		if m.Type != truthType {
			continue
		}
		ts, ok := m.TimeUS()
		if !ok {
			continue
		}
		if s.GroundTruth == 0 {
			s.FirstUS = ts
		}
		s.LastUS = ts
		s.GroundTruth++
	}
	if br, ok := src.(*dataflash.BinaryReader); ok {
		s.SkippedBytes = br.Skipped()
	}
	return s, nil
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	src, err := dataflash.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	s, err := summarizeLog(src, telemetry.GroundTruthType)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "messages: %d\n", s.Messages)
	fmt.Fprintf(w, "skipped_bytes: %d\n", s.SkippedBytes)
	fmt.Fprintf(w, "ground_truth: %d\n", s.GroundTruth)
	if s.GroundTruth > 0 {
		fmt.Fprintf(w, "time_span: %s (%dus .. %dus)\n", s.Span(), s.FirstUS, s.LastUS)
	}

	keys := make([]string, 0, len(s.TypeCounts))
	for k := range s.TypeCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "type_counts:\n")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, s.TypeCounts[k])
	}
	return nil
}

func runSummary(args []string, stdout io.Writer) error {
	fs := newFlagSet("summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one log file, got %d arguments", fs.NArg())
	}
	return printLogSummary(stdout, fs.Arg(0))
}
