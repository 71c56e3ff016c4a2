// Package plan reads, writes and generates plan.json experiment descriptions:
// one home, port assignment and waypoint list per vehicle.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"avoidance-eval/internal/geo"
)

// FileName is the plan file written into every experiment directory.
const FileName = "plan.json"

// Base ports; each vehicle id adds 10*id.
const (
	MasterPortBase = 5760
	SITLPortBase   = 5501
)

// Plan is the top-level plan.json document.
type Plan struct {
	Vehicles map[int]VehiclePlan `json:"vehicles"`
}

// Home is [lat, lng, alt m, heading deg].
type Home [4]float64

func (h Home) Position() geo.Position {
	return geo.Position{LatDeg: h[0], LonDeg: h[1], AltM: h[2]}
}

func (h Home) HeadingDeg() float64 { return h[3] }

// HomeAt builds a Home from a position and heading.
func HomeAt(p geo.Position, headingDeg float64) Home {
	return Home{p.LatDeg, p.LonDeg, p.AltM, headingDeg}
}

// Point is [lat, lng, alt m].
type Point [3]float64

func (p Point) Position() geo.Position {
	return geo.Position{LatDeg: p[0], LonDeg: p[1], AltM: p[2]}
}

// PointAt builds a Point from a position.
func PointAt(p geo.Position) Point {
	return Point{p.LatDeg, p.LonDeg, p.AltM}
}

type Waypoint struct {
	Point   Point   `json:"waypoint"`
	SpeedTo float64 `json:"speed_to"`
}

type VehiclePlan struct {
	Instance      int              `json:"instance"`
	Home          Home             `json:"home"`
	Name          string           `json:"name"`
	Master        int              `json:"master"`
	SITLPort      int              `json:"sitl_port"`
	ExtraOutPorts []int            `json:"extra_out_ports"`
	FlightPlan    map[int]Waypoint `json:"flight_plan"`
}

// NewVehicle returns a vehicle plan with the per-instance defaults filled in.
func NewVehicle(id int, home Home, waypoints ...Waypoint) VehiclePlan {
	fp := make(map[int]Waypoint, len(waypoints))
	for i, w := range waypoints {
		fp[i] = w
	}
	return VehiclePlan{
		Instance:      id,
		Home:          home,
		Name:          "sim_" + strconv.Itoa(id),
		Master:        MasterPortBase + 10*id,
		SITLPort:      SITLPortBase + 10*id,
		ExtraOutPorts: []int{},
		FlightPlan:    fp,
	}
}

// Waypoints returns the flight plan in execution order.
func (v VehiclePlan) Waypoints() []Waypoint {
	keys := make([]int, 0, len(v.FlightPlan))
	for k := range v.FlightPlan {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Waypoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, v.FlightPlan[k])
	}
	return out
}

// IDs returns the vehicle ids in ascending order.
func (p Plan) IDs() []int {
	ids := make([]int, 0, len(p.Vehicles))
	for id := range p.Vehicles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (p Plan) Validate() error {
	if len(p.Vehicles) == 0 {
		return fmt.Errorf("vehicles is required")
	}
	for _, id := range p.IDs() {
		v := p.Vehicles[id]
		if id < 0 {
			return fmt.Errorf("vehicles.%d: id must be >= 0", id)
		}
		if len(v.FlightPlan) == 0 {
			return fmt.Errorf("vehicles.%d.flight_plan is required", id)
		}
		for n, w := range v.FlightPlan {
			if w.SpeedTo <= 0 {
				return fmt.Errorf("vehicles.%d.flight_plan.%d.speed_to must be > 0", id, n)
			}
		}
	}
	return nil
}

func Load(path string) (Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, err
	}
	var p Plan
	if err := json.Unmarshal(b, &p); err != nil {
		return Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Save writes p as indented JSON.
func Save(path string, p Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// ExperimentDirPrefix prefixes experiment directories: experiment_<n>.
const ExperimentDirPrefix = "experiment_"

// NextExperimentDir returns root/experiment_<n> with n one past the highest
// existing experiment number (0 when there is none). It does not create it.
func NextExperimentDir(root string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, ExperimentDirPrefix+"*"))
	if err != nil {
		return "", err
	}
	next := 0
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(m), ExperimentDirPrefix))
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return filepath.Join(root, ExperimentDirPrefix+strconv.Itoa(next)), nil
}
