package geo

import "math"

// EarthRadiusM is the spherical earth radius used for all horizontal distances.
const EarthRadiusM = 6378137.0

// Position is a WGS84 latitude/longitude in degrees and an altitude in metres.
type Position struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltM   float64 `json:"alt_m"`
}

func degToRad(d float64) float64 { return d * math.Pi / 180.0 }
func radToDeg(r float64) float64 { return r * 180.0 / math.Pi }

// HorizontalDistance returns the haversine great-circle distance in metres.
func HorizontalDistance(a, b Position) float64 {
	lat1 := degToRad(a.LatDeg)
	lat2 := degToRad(b.LatDeg)
	dLat := lat2 - lat1
	dLon := degToRad(b.LonDeg - a.LonDeg)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h a hair past 1 for antipodal points.
	if h > 1 {
		h = 1
	}
	return 2 * math.Asin(math.Sqrt(h)) * EarthRadiusM
}

// Distance combines the horizontal great-circle distance with the altitude
// difference as a straight line. Good enough over the short ranges between
// vehicles in one experiment.
func Distance(a, b Position) float64 {
	h := HorizontalDistance(a, b)
	dz := b.AltM - a.AltM
	return math.Sqrt(h*h + dz*dz)
}

// Offset moves p by north/east metres. Accurate to ~10m over 1km away from the poles.
func Offset(p Position, northM, eastM float64) Position {
	dLat := northM / EarthRadiusM
	dLon := eastM / (EarthRadiusM * math.Cos(degToRad(p.LatDeg)))
	return Position{
		LatDeg: p.LatDeg + radToDeg(dLat),
		LonDeg: p.LonDeg + radToDeg(dLon),
		AltM:   p.AltM,
	}
}

// Project returns the point distanceM from p along bearingDeg (0 = true north,
// 90 = east). Altitude is unchanged.
func Project(p Position, distanceM, bearingDeg float64) Position {
	rad := degToRad(bearingDeg)
	return Offset(p, distanceM*math.Cos(rad), distanceM*math.Sin(rad))
}

// Bearing returns the flat-earth bearing from a to b in degrees, normalized to [0, 360).
func Bearing(a, b Position) float64 {
	dLat := b.LatDeg - a.LatDeg
	dx := math.Cos(degToRad(a.LatDeg)) * (b.LonDeg - a.LonDeg)
	deg := radToDeg(math.Atan2(dx, dLat))
	return math.Mod(deg+360, 360)
}

// Lerp linearly interpolates between a and b; t is clamped to [0, 1].
func Lerp(a, b Position, t float64) Position {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return Position{
		LatDeg: a.LatDeg + (b.LatDeg-a.LatDeg)*t,
		LonDeg: a.LonDeg + (b.LonDeg-a.LonDeg)*t,
		AltM:   a.AltM + (b.AltM-a.AltM)*t,
	}
}
