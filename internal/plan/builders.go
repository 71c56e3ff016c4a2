package plan

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"avoidance-eval/internal/geo"
)

// DefaultHome is the SITL default location (CMAC, Canberra).
var DefaultHome = Home{-35.663261, 149.165230, 584, 0}

const (
	DefaultTakeoffM = 30.0
	DefaultSpeedMS  = 5.0
)

// Random builds vehicles with homes and waypoints scattered near a common
// home, the way SITL experiments are generated without a collision type.
type Random struct {
	Vehicles  int
	Waypoints int
	Home      Home
	TakeoffM  float64
	SpeedMS   float64
	Rand      *rand.Rand
}

func (r Random) withDefaults() Random {
	if r.Vehicles <= 0 {
		r.Vehicles = 2
	}
	if r.Waypoints <= 0 {
		r.Waypoints = 3
	}
	if r.Home == (Home{}) {
		r.Home = DefaultHome
	}
	if r.TakeoffM <= 0 {
		r.TakeoffM = DefaultTakeoffM
	}
	if r.SpeedMS <= 0 {
		r.SpeedMS = DefaultSpeedMS
	}
	if r.Rand == nil {
		r.Rand = rand.New(rand.NewPCG(1, 2))
	}
	return r
}

// perturb returns a uniform offset in [0.0001, 0.001) degrees.
func perturb(rng *rand.Rand) float64 {
	return 0.0001 + rng.Float64()*(0.001-0.0001)
}

func (r Random) Build() Plan {
	r = r.withDefaults()
	p := Plan{Vehicles: make(map[int]VehiclePlan, r.Vehicles)}
	for id := 0; id < r.Vehicles; id++ {
		home := r.Home
		home[0] += perturb(r.Rand)
		home[1] += perturb(r.Rand)

		wps := make([]Waypoint, 0, r.Waypoints)
		for n := 0; n < r.Waypoints; n++ {
			wps = append(wps, Waypoint{
				Point:   Point{home[0] + perturb(r.Rand), home[1] + perturb(r.Rand), home[2] + r.TakeoffM},
				SpeedTo: r.SpeedMS,
			})
		}
		p.Vehicles[id] = NewVehicle(id, home, wps...)
	}
	return p
}

// HoverLine puts vehicle 0 in a hover at takeoff height and sends Lines
// vehicles through the hover point. Line vehicles start on a regular polygon
// around the hover point at a normally distributed distance and fly to twice
// that distance on the opposite side.
type HoverLine struct {
	Lines        int
	AvgDistM     float64
	DistVariance float64
	Home         Home
	// HomeJitterM bounds the random north/east shift of the hover home;
	// negative disables it.
	HomeJitterM float64
	TakeoffM    float64
	SpeedMS     float64
	Rand        *rand.Rand
}

func (h HoverLine) withDefaults() HoverLine {
	if h.Lines <= 0 {
		h.Lines = 1
	}
	if h.AvgDistM <= 0 {
		h.AvgDistM = 30
	}
	if h.Home == (Home{}) {
		h.Home = DefaultHome
	}
	if h.HomeJitterM == 0 {
		h.HomeJitterM = 20
	}
	if h.TakeoffM <= 0 {
		h.TakeoffM = DefaultTakeoffM
	}
	if h.SpeedMS <= 0 {
		h.SpeedMS = DefaultSpeedMS
	}
	if h.Rand == nil {
		h.Rand = rand.New(rand.NewPCG(1, 2))
	}
	return h
}

func (h HoverLine) Build() (Plan, error) {
	h = h.withDefaults()
	if h.DistVariance < 0 {
		return Plan{}, fmt.Errorf("hover line: distance variance must be >= 0")
	}

	jitter := math.Max(h.HomeJitterM, 0)
	center := geo.Offset(h.Home.Position(), h.Rand.Float64()*jitter, h.Rand.Float64()*jitter)
	hover := center
	hover.AltM += h.TakeoffM

	p := Plan{Vehicles: make(map[int]VehiclePlan, h.Lines+1)}
	p.Vehicles[0] = NewVehicle(0, HomeAt(center, h.Home.HeadingDeg()),
		Waypoint{Point: PointAt(hover), SpeedTo: h.SpeedMS})

	dist := distuv.Normal{Mu: h.AvgDistM, Sigma: math.Sqrt(h.DistVariance), Src: h.Rand}
	for i := 1; i <= h.Lines; i++ {
		d := h.AvgDistM
		if h.DistVariance > 0 {
			d = math.Abs(dist.Rand())
		}
		bearing := 360.0 * float64(i) / float64(h.Lines)
		start := geo.Project(center, d, bearing)

		// Through the hover point to 2d beyond the start, at hover height.
		end := geo.Project(start, 2*d, geo.Bearing(start, center))
		end.AltM = hover.AltM

		p.Vehicles[i] = NewVehicle(i, HomeAt(start, 0), Waypoint{Point: PointAt(end), SpeedTo: h.SpeedMS})
	}
	return p, nil
}
