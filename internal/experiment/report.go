package experiment

import (
	"sort"

	"avoidance-eval/internal/proximity"
)

// Report is the outcome of one experiment: for each vehicle, its closest
// approach to every other vehicle it was compared against.
type Report struct {
	Experiment  string                             `json:"experiment"`
	TimeDeltaUS int64                              `json:"time_delta_us"`
	Vehicles    map[int]map[int]proximity.Approach `json:"vehicles"`
	Stats       SweepStats                         `json:"stats"`

	// AmbiguousLogs lists every matching log of vehicles that had more than
	// one; the last entry is the one analysed.
	AmbiguousLogs map[int][]string `json:"ambiguous_logs,omitempty"`
}

// Pair is one flattened report entry.
type Pair struct {
	Vehicle      int `json:"vehicle"`
	OtherVehicle int `json:"other_vehicle"`
	proximity.Approach
}

// IDs returns the vehicle ids in ascending order.
func (r Report) IDs() []int {
	ids := make([]int, 0, len(r.Vehicles))
	for id := range r.Vehicles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Pairs flattens the report, ordered by vehicle then other vehicle.
func (r Report) Pairs() []Pair {
	var out []Pair
	for _, id := range r.IDs() {
		others := r.Vehicles[id]
		ids := make([]int, 0, len(others))
		for o := range others {
			ids = append(ids, o)
		}
		sort.Ints(ids)
		for _, o := range ids {
			out = append(out, Pair{Vehicle: id, OtherVehicle: o, Approach: others[o]})
		}
	}
	return out
}

// Closest returns the pair with the smallest distance.
func (r Report) Closest() (Pair, bool) {
	pairs := r.Pairs()
	if len(pairs) == 0 {
		return Pair{}, false
	}
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.DistanceM < best.DistanceM {
			best = p
		}
	}
	return best, true
}
