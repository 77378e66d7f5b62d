package ephemeris

import (
	"math"

	"github.com/sells-group/natal-cli/internal/model"
)

// orbitalElements are mean Keplerian elements referred to the J2000 ecliptic
// and equinox, with linear rates per Julian century.
type orbitalElements struct {
	a, e, i, meanLon, peri, node       float64
	da, de, di, dMeanLon, dPeri, dNode float64
}

// jplElements are the JPL approximate planetary elements, valid 1800-2050.
var jplElements = map[model.Body]orbitalElements{
	model.Mercury: {
		0.38709927, 0.20563593, 7.00497902, 252.25032350, 77.45779628, 48.33076593,
		0.00000037, 0.00001906, -0.00594749, 149472.67411175, 0.16047689, -0.12534081,
	},
	model.Venus: {
		0.72333566, 0.00677672, 3.39467605, 181.97909950, 131.60246718, 76.67984255,
		0.00000390, -0.00004107, -0.00078890, 58517.81538729, 0.00268329, -0.27769418,
	},
	model.Mars: {
		1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891,
		0.00001847, 0.00007882, -0.00813131, 19140.30268499, 0.44441088, -0.29257343,
	},
	model.Jupiter: {
		5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909,
		-0.00011607, -0.00013253, -0.00183714, 3034.74612775, 0.21252668, 0.20469106,
	},
	model.Saturn: {
		9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448,
		-0.00125060, -0.00050991, 0.00193609, 1222.49362201, -0.41897216, -0.28867794,
	},
	model.Uranus: {
		19.18916464, 0.04725744, 0.77263783, 313.23810451, 170.95427630, 74.01692503,
		-0.00196176, -0.00004397, -0.00242939, 428.48202785, 0.40805281, 0.04240589,
	},
	model.Neptune: {
		30.06992276, 0.00859048, 1.77004347, -55.12002969, 44.96476227, 131.78422574,
		0.00026291, 0.00005105, 0.00035372, 218.45945325, -0.32241464, -0.00508664,
	},
}

// earthElements describe the Earth-Moon barycenter.
var earthElements = orbitalElements{
	1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0.0,
	0.00000562, -0.00004392, -0.01294668, 35999.37244981, 0.32327364, 0.0,
}

// heliocentric returns the J2000 ecliptic position at jde.
func (el orbitalElements) heliocentric(jde float64) vec {
	t := centuries(jde)
	a := el.a + el.da*t
	e := el.e + el.de*t
	inc := el.i + el.di*t
	meanLon := el.meanLon + el.dMeanLon*t
	peri := el.peri + el.dPeri*t
	node := el.node + el.dNode*t

	return orbitToEcliptic(a, e, inc, node, peri-node, meanLon-peri)
}

// perihelionElements describe an orbit by its time of perihelion passage,
// used for minor bodies whose mean longitude is not tabulated.
type perihelionElements struct {
	a, e, i, node, argPeri float64
	perihelionJD           float64
}

// chironElements are osculating elements of 2060 Chiron near its 1996
// perihelion.
var chironElements = perihelionElements{
	a:            13.6481,
	e:            0.3794,
	i:            6.926,
	node:         209.30,
	argPeri:      339.25,
	perihelionJD: 2450128.5,
}

// gaussK is the Gaussian gravitational constant in degrees per day.
const gaussK = 0.9856076686

func (el perihelionElements) heliocentric(jde float64) vec {
	n := gaussK / math.Pow(el.a, 1.5)
	m := n * (jde - el.perihelionJD)
	return orbitToEcliptic(el.a, el.e, el.i, el.node, el.argPeri, m)
}

// orbitToEcliptic places a body with the given elements (degrees) and mean
// anomaly on the ecliptic.
func orbitToEcliptic(a, e, inc, node, argPeri, meanAnomaly float64) vec {
	ea := solveKepler(meanAnomaly*deg2rad, e)
	xp := a * (math.Cos(ea) - e)
	yp := a * math.Sqrt(1-e*e) * math.Sin(ea)

	cw, sw := cosd(argPeri), sind(argPeri)
	cn, sn := cosd(node), sind(node)
	ci, si := cosd(inc), sind(inc)

	return vec{
		x: (cw*cn-sw*sn*ci)*xp + (-sw*cn-cw*sn*ci)*yp,
		y: (cw*sn+sw*cn*ci)*xp + (-sw*sn+cw*cn*ci)*yp,
		z: (sw*si)*xp + (cw*si)*yp,
	}
}

// solveKepler returns the eccentric anomaly for mean anomaly m (radians).
func solveKepler(m, e float64) float64 {
	m = math.Remainder(m, 2*math.Pi)
	ea := m + e*math.Sin(m)
	for range 50 {
		delta := (ea - e*math.Sin(ea) - m) / (1 - e*math.Cos(ea))
		ea -= delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}
	return ea
}

// geocentricLongitude is the ecliptic longitude of a body seen from earth,
// corrected once for light travel time.
func geocentricLongitude(body, earth func(jde float64) vec, jde float64) float64 {
	e := earth(jde)
	d := body(jde).sub(e)
	tau := lightTimePerAU * d.length()
	return body(jde - tau).sub(e).longitude()
}
