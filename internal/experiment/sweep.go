package experiment

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"avoidance-eval/internal/telemetry"
)

// ErrTimeOrdering means a vehicle's next sample precedes the round pivot,
// which the ordering step makes impossible for well-formed cursors.
var ErrTimeOrdering = errors.New("time ordering violated")

// TimeOrderingError reports the vehicle that broke ordering within a round.
type TimeOrderingError struct {
	Vehicle     int
	Pivot       int
	PivotTimeUS int64
	TimeUS      int64
}

func (e *TimeOrderingError) Error() string {
	return fmt.Sprintf("vehicle %d sample at %dus is before pivot vehicle %d at %dus",
		e.Vehicle, e.TimeUS, e.Pivot, e.PivotTimeUS)
}

func (e *TimeOrderingError) Unwrap() error { return ErrTimeOrdering }

// SweepStats summarise one sweep.
type SweepStats struct {
	// Rounds counts completed rounds.
	Rounds int `json:"rounds"`
	// MaxRounds is the round bound: the longest sample sequence.
	MaxRounds int `json:"max_rounds"`
	// Taken counts consumed samples.
	Taken int `json:"taken"`
	// Comparisons counts samples offered to trackers.
	Comparisons int `json:"comparisons"`
	// Updates counts closest-approach records written.
	Updates int `json:"updates"`
	// Skipped counts vehicles left out of a round for being too far ahead.
	Skipped int `json:"skipped"`

	Exhausted        bool `json:"exhausted"`
	ExhaustedVehicle int  `json:"exhausted_vehicle"`
}

func (s *SweepStats) exhausted(id int) {
	s.Exhausted = true
	s.ExhaustedVehicle = id
}

// Sweep walks every vehicle's samples in time order. Each round the vehicle
// with the earliest next sample is the pivot; every vehicle within the time
// delta of it contributes its next sample, and each contribution is offered
// to the vehicles later in the round. The sweep ends when any vehicle runs
// out of samples or after as many rounds as the longest sequence.
func (a *Analyzer) Sweep() (SweepStats, error) {
	for _, id := range a.ids {
		if a.vehicles[id].cursor == nil {
			return SweepStats{}, errNotSetUp
		}
	}

	var st SweepStats
	for _, id := range a.ids {
		if r := a.vehicles[id].cursor.Remaining(); r > st.MaxRounds {
			st.MaxRounds = r
		}
	}

	var err error
	for st.Rounds < st.MaxRounds {
		order, ok := a.order(&st)
		if !ok {
			break
		}
		var done bool
		done, err = a.sweepRound(order, &st)
		if err != nil {
			break
		}
		st.Rounds++
		if done {
			break
		}
	}
	a.stats = st

	if err != nil {
		log.Printf("sweep aborted after %d rounds: %v", st.Rounds, err)
		return st, err
	}
	if st.Exhausted {
		log.Printf("sweep stopped after %d/%d rounds: vehicle %d out of samples", st.Rounds, st.MaxRounds, st.ExhaustedVehicle)
	}
	log.Printf("sweep done rounds=%d taken=%d comparisons=%d updates=%d skipped=%d",
		st.Rounds, st.Taken, st.Comparisons, st.Updates, st.Skipped)
	return st, nil
}

// order returns vehicle ids sorted by next sample time, ties by id. It
// reports false if any vehicle is exhausted.
func (a *Analyzer) order(st *SweepStats) ([]int, bool) {
	next := make(map[int]int64, len(a.ids))
	for _, id := range a.ids {
		t, err := a.vehicles[id].cursor.PeekTime()
		if err != nil {
			st.exhausted(id)
			return nil, false
		}
		next[id] = t
	}

	order := append([]int(nil), a.ids...)
	sort.SliceStable(order, func(i, j int) bool {
		ti, tj := next[order[i]], next[order[j]]
		if ti != tj {
			return ti < tj
		}
		return order[i] < order[j]
	})
	return order, true
}

// sweepRound processes one round in the given order. done is true when a
// cursor ran out mid-round.
func (a *Analyzer) sweepRound(order []int, st *SweepStats) (done bool, err error) {
	if len(order) == 0 {
		return true, nil
	}
	pivot := order[0]
	t, err := a.vehicles[pivot].cursor.PeekTime()
	if err != nil {
		st.exhausted(pivot)
		return true, nil
	}

	for i, id := range order {
		v := a.vehicles[id]
		tv, err := v.cursor.PeekTime()
		if err != nil {
			st.exhausted(id)
			return true, nil
		}
		if tv-t > a.opts.TimeDeltaUS {
			st.Skipped++
			if a.opts.Verbose {
				log.Printf("vehicle %d: next sample %dus is %dus after pivot %d, skipped", id, tv, tv-t, pivot)
			}
			continue
		}
		if tv < t {
			return true, &TimeOrderingError{Vehicle: id, Pivot: pivot, PivotTimeUS: t, TimeUS: tv}
		}

		s, ok := v.cursor.Take()
		if !ok {
			st.exhausted(id)
			return true, nil
		}
		st.Taken++

		for _, later := range order[i+1:] {
			updated, err := a.vehicles[later].tracker.Observe(id, s)
			if errors.Is(err, telemetry.ErrOutOfSamples) {
				st.exhausted(later)
				return true, nil
			}
			if err != nil {
				return true, err
			}
			st.Comparisons++
			if updated {
				st.Updates++
			}
		}
	}
	return false, nil
}
