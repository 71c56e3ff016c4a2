package experiment

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNoVehicles means the experiment directory holds no vehicle_<id> directory.
	ErrNoVehicles = errors.New("no vehicle directories found")
	// ErrNoLogFound means a vehicle directory holds no matching log file.
	ErrNoLogFound = errors.New("no log file found")
)

// VehicleDirPrefix prefixes every per-vehicle directory: vehicle_<id>.
const VehicleDirPrefix = "vehicle_"

// DefaultLogGlobs are searched relative to each vehicle directory.
var DefaultLogGlobs = []string{"logs/*.BIN", "logs/*.bin", "logs/*.log"}

// VehicleDir is one discovered vehicle directory.
type VehicleDir struct {
	ID   int
	Path string
}

// Discover lists the vehicle directories of an experiment, sorted by id.
// Entries whose suffix is not an integer are skipped with a warning.
func Discover(dir string) ([]VehicleDir, error) {
	matches, err := filepath.Glob(filepath.Join(dir, VehicleDirPrefix+"*"))
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(matches))
	out := make([]VehicleDir, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			continue
		}
		base := filepath.Base(m)
		id, err := strconv.Atoi(strings.TrimPrefix(base, VehicleDirPrefix))
		if err != nil || id < 0 {
			log.Printf("experiment: skipping %s (not vehicle_<id>)", m)
			continue
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("vehicle %d: duplicate directories %s and %s", id, prev, m)
		}
		seen[id] = m
		out = append(out, VehicleDir{ID: id, Path: m})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoVehicles, dir)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SelectLog picks the log to analyse in vehicleDir: the last match of globs
// in sorted order. All matches are returned so callers can report ambiguity.
func SelectLog(vehicleDir string, globs []string) (string, []string, error) {
	if len(globs) == 0 {
		globs = DefaultLogGlobs
	}

	uniq := make(map[string]struct{})
	for _, g := range globs {
		matches, err := filepath.Glob(filepath.Join(vehicleDir, g))
		if err != nil {
			return "", nil, fmt.Errorf("log glob %q: %w", g, err)
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				uniq[m] = struct{}{}
			}
		}
	}
	if len(uniq) == 0 {
		return "", nil, fmt.Errorf("%w in %s", ErrNoLogFound, vehicleDir)
	}

	candidates := make([]string, 0, len(uniq))
	for m := range uniq {
		candidates = append(candidates, m)
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1], candidates, nil
}
