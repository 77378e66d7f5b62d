package ephemeris

import "math"

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi

	// J2000 is the Julian Day of 2000-01-01 12:00 TT.
	J2000 = 2451545.0
	// daysPerCentury is one Julian century.
	daysPerCentury = 36525.0
)

func sind(x float64) float64  { return math.Sin(x * deg2rad) }
func cosd(x float64) float64  { return math.Cos(x * deg2rad) }
func tand(x float64) float64  { return math.Tan(x * deg2rad) }
func asind(x float64) float64 { return math.Asin(x) * rad2deg }

func atan2d(y, x float64) float64 {
	return norm360(math.Atan2(y, x) * rad2deg)
}

func norm360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// centuries converts a Julian Ephemeris Day to Julian centuries from J2000.
func centuries(jde float64) float64 {
	return (jde - J2000) / daysPerCentury
}

// signedArc maps the difference b-a onto (-180,180].
func signedArc(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// precessFromJ2000 moves an ecliptic longitude referred to the J2000 equinox
// to the mean equinox of date, ignoring the small change in latitude.
func precessFromJ2000(lon, jde float64) float64 {
	t := centuries(jde)
	return norm360(lon + 1.3969713*t + 0.0003086*t*t)
}

// vec is a heliocentric ecliptic rectangular vector in AU.
type vec struct{ x, y, z float64 }

func fromSpherical(lonDeg, latDeg, r float64) vec {
	cb := cosd(latDeg)
	return vec{r * cb * cosd(lonDeg), r * cb * sind(lonDeg), r * sind(latDeg)}
}

func (v vec) sub(o vec) vec { return vec{v.x - o.x, v.y - o.y, v.z - o.z} }

func (v vec) length() float64 { return math.Sqrt(v.x*v.x + v.y*v.y + v.z*v.z) }

func (v vec) longitude() float64 { return atan2d(v.y, v.x) }

// lightTimePerAU is the light travel time for one AU in days.
const lightTimePerAU = 0.0057755183
