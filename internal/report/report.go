// Package report renders experiment results as text, JSON and charts.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"avoidance-eval/internal/experiment"
)

var errNoPairs = errors.New("report has no approaches")

// PairDistance is the closest approach between two vehicles regardless of
// which one observed it.
type PairDistance struct {
	A, B      int
	DistanceM float64
	TimeUS    int64
}

func (p PairDistance) Label() string { return fmt.Sprintf("%d-%d", p.A, p.B) }

// Unordered folds both directions of every pair into one entry, keeping the
// smaller distance. Entries are ordered by (A, B) with A < B.
func Unordered(r experiment.Report) []PairDistance {
	type key struct{ a, b int }
	best := make(map[key]PairDistance)
	for _, p := range r.Pairs() {
		k := key{p.Vehicle, p.OtherVehicle}
		if k.a > k.b {
			k.a, k.b = k.b, k.a
		}
		cur, ok := best[k]
		if !ok || p.DistanceM < cur.DistanceM {
			best[k] = PairDistance{A: k.a, B: k.b, DistanceM: p.DistanceM, TimeUS: p.TimeUS}
		}
	}

	out := make([]PairDistance, 0, len(best))
	for _, v := range best {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Summary describes the distribution of closest approaches over vehicle pairs.
type Summary struct {
	Vehicles int     `json:"vehicles"`
	Pairs    int     `json:"pairs"`
	MinM     float64 `json:"min_m"`
	MeanM    float64 `json:"mean_m"`
	StdDevM  float64 `json:"stddev_m"`
	MaxM     float64 `json:"max_m"`
	// Closest is the smallest approach; valid when Pairs > 0.
	Closest PairDistance `json:"closest"`
}

func Summarize(r experiment.Report) Summary {
	pairs := Unordered(r)
	s := Summary{Vehicles: len(r.Vehicles), Pairs: len(pairs)}
	if len(pairs) == 0 {
		return s
	}

	d := make([]float64, len(pairs))
	for i, p := range pairs {
		d[i] = p.DistanceM
	}
	s.MinM = floats.Min(d)
	s.MaxM = floats.Max(d)
	s.MeanM = stat.Mean(d, nil)
	if len(d) > 1 {
		s.StdDevM = stat.StdDev(d, nil)
	}
	s.Closest = pairs[floats.MinIdx(d)]
	return s
}

// WriteText prints one line per observed approach, then the summary and how
// the sweep ended.
func WriteText(w io.Writer, r experiment.Report) error {
	for _, p := range r.Pairs() {
		if _, err := fmt.Fprintf(w, "vehicle %d got within %.2f m of vehicle %d at t=%.3fs\n",
			p.Vehicle, p.DistanceM, p.OtherVehicle, float64(p.TimeUS)/1e6); err != nil {
			return err
		}
	}

	s := Summarize(r)
	if s.Pairs == 0 {
		if _, err := fmt.Fprintf(w, "%d vehicles, no approaches within the time window\n", s.Vehicles); err != nil {
			return err
		}
	} else if _, err := fmt.Fprintf(w, "%d vehicles, %d pairs: closest %.2f m (vehicles %d and %d), mean %.2f m, max %.2f m\n",
		s.Vehicles, s.Pairs, s.MinM, s.Closest.A, s.Closest.B, s.MeanM, s.MaxM); err != nil {
		return err
	}

	for _, id := range r.IDs() {
		logs := r.AmbiguousLogs[id]
		if len(logs) < 2 {
			continue
		}
		if _, err := fmt.Fprintf(w, "vehicle %d: %d matching logs, used %s\n", id, len(logs), logs[len(logs)-1]); err != nil {
			return err
		}
	}

	st := r.Stats
	stop := "round limit reached"
	if st.Exhausted {
		stop = fmt.Sprintf("vehicle %d out of samples", st.ExhaustedVehicle)
	}
	_, err := fmt.Fprintf(w, "sweep: %d/%d rounds, %d samples, %d comparisons, %d skipped; %s\n",
		st.Rounds, st.MaxRounds, st.Taken, st.Comparisons, st.Skipped, stop)
	return err
}

type jsonReport struct {
	experiment.Report
	Summary Summary `json:"summary"`
}

// WriteJSON writes the report and its summary as indented JSON.
func WriteJSON(w io.Writer, r experiment.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Report: r, Summary: Summarize(r)})
}
