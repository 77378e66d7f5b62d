package ephemeris

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/natal-cli/internal/model"
)

// ErrCircumpolar is returned when a time-based house system is undefined
// because part of the ecliptic never rises or sets at the latitude.
var ErrCircumpolar = eris.New("ephemeris: house system undefined at this latitude")

// Frame is the local sky orientation at one instant: right ascension of the
// meridian, obliquity of the ecliptic and geographic latitude, in degrees.
type Frame struct {
	RAMC      float64
	Obliquity float64
	Latitude  float64
}

// HouseSet is the twelve cusps plus the two angles.
type HouseSet struct {
	Cusps     []model.HouseCusp
	Ascendant float64
	Midheaven float64
}

// NewFrame builds a Frame from local sidereal time in degrees.
func NewFrame(localSiderealDeg, obliquity, latitude float64) Frame {
	return Frame{RAMC: norm360(localSiderealDeg), Obliquity: obliquity, Latitude: latitude}
}

// Midheaven is the ecliptic longitude culminating on the meridian.
func (f Frame) Midheaven() float64 {
	return atan2d(sind(f.RAMC), cosd(f.RAMC)*cosd(f.Obliquity))
}

// Ascendant is the ecliptic longitude rising on the eastern horizon. Inside
// the polar circles the horizon intersection can fall west of the
// midheaven; the opposite point is taken so the Ascendant always follows
// the Midheaven by less than half a circle.
func (f Frame) Ascendant() float64 {
	asc := f.ascendantAt(f.RAMC)
	if model.ForwardArc(f.Midheaven(), asc) >= 180 {
		asc = norm360(asc + 180)
	}
	return asc
}

func (f Frame) ascendantAt(ramc float64) float64 {
	return f.cuspAt(ramc+90, f.Latitude)
}

// cuspAt intersects the ecliptic with the great circle through the north and
// south points of the horizon that has the given pole and crosses the
// equator at right ascension ra.
func (f Frame) cuspAt(ra, pole float64) float64 {
	return atan2d(sind(ra), cosd(ra)*cosd(f.Obliquity)-tand(pole)*sind(f.Obliquity))
}

// eclipticFromRA is the ecliptic longitude of the point with right ascension ra.
func (f Frame) eclipticFromRA(ra float64) float64 {
	return atan2d(sind(ra), cosd(ra)*cosd(f.Obliquity))
}

// ascensionalDifference of an ecliptic point, or ErrCircumpolar.
func (f Frame) ascensionalDifference(lon float64) (float64, error) {
	decl := asind(sind(f.Obliquity) * sind(lon))
	x := tand(f.Latitude) * tand(decl)
	if math.Abs(x) > 1 {
		return 0, ErrCircumpolar
	}
	return asind(x), nil
}

// Houses computes cusps for hs.
func (f Frame) Houses(hs model.HouseSystem) (HouseSet, error) {
	asc := f.Ascendant()
	mc := f.Midheaven()
	set := HouseSet{Ascendant: asc, Midheaven: mc}

	var cusps [model.HouseCount]float64
	switch hs {
	case model.EqualHouses:
		for i := range cusps {
			cusps[i] = norm360(asc + 30*float64(i))
		}
	case model.WholeSign:
		start := math.Floor(asc/30) * 30
		for i := range cusps {
			cusps[i] = norm360(start + 30*float64(i))
		}
	case model.Porphyry, model.Placidus, model.Koch, model.Regiomontanus, model.Campanus, "":
		inter, err := f.intermediates(hs, asc, mc)
		if err != nil {
			return HouseSet{}, eris.Wrapf(err, "ephemeris: %s houses at latitude %.4f", hs.Name(), f.Latitude)
		}
		for i := range inter {
			if hs == model.Placidus || hs == model.Porphyry || hs == "" {
				break
			}
			if i < 2 {
				inter[i] = intoQuadrant(inter[i], mc, asc)
			} else {
				inter[i] = intoQuadrant(inter[i], asc, mc+180)
			}
		}
		cusps = quadrantCusps(asc, mc, inter)
	default:
		return HouseSet{}, eris.Errorf("ephemeris: unsupported house system %q", hs)
	}

	set.Cusps = make([]model.HouseCusp, model.HouseCount)
	for i, lon := range cusps {
		set.Cusps[i] = model.HouseCusp{House: i + 1, Longitude: lon}
	}
	if err := validateHouses(set.Cusps); err != nil {
		return HouseSet{}, eris.Wrapf(ErrCircumpolar, "ephemeris: %s houses at latitude %.4f: %v", hs.Name(), f.Latitude, err)
	}
	return set, nil
}

// intoQuadrant returns lon, or its opposite point, whichever lies on the
// forward arc from start to end. Great-circle intersections are only
// defined up to that choice. lon is returned unchanged when neither fits.
func intoQuadrant(lon, start, end float64) float64 {
	span := model.ForwardArc(start, end)
	if model.ForwardArc(start, lon) < span {
		return lon
	}
	if opp := norm360(lon + 180); model.ForwardArc(start, opp) < span {
		return opp
	}
	return lon
}

// intermediates returns cusps 11, 12, 2 and 3 of a quadrant system.
func (f Frame) intermediates(hs model.HouseSystem, asc, mc float64) ([4]float64, error) {
	switch hs {
	case model.Porphyry:
		upper := model.ForwardArc(mc, asc)
		lower := model.ForwardArc(asc, mc+180)
		return [4]float64{
			norm360(mc + upper/3),
			norm360(mc + 2*upper/3),
			norm360(asc + lower/3),
			norm360(asc + 2*lower/3),
		}, nil
	case model.Koch:
		return f.koch(mc)
	case model.Regiomontanus:
		var out [4]float64
		for i, h := range [4]float64{30, 60, 120, 150} {
			pole := math.Atan(tand(f.Latitude)*sind(h)) * rad2deg
			out[i] = f.cuspAt(f.RAMC+h, pole)
		}
		return out, nil
	case model.Campanus:
		var out [4]float64
		for i, a := range [4]float64{30, 60, 120, 150} {
			h := atan2d(sind(a)*cosd(f.Latitude), cosd(a))
			pole := asind(sind(f.Latitude) * sind(a))
			out[i] = f.cuspAt(f.RAMC+h, pole)
		}
		return out, nil
	default:
		return f.placidus()
	}
}

func (f Frame) placidus() ([4]float64, error) {
	var out [4]float64
	specs := []struct {
		fraction float64
		above    bool
	}{{1.0 / 3, true}, {2.0 / 3, true}, {2.0 / 3, false}, {1.0 / 3, false}}
	for i, s := range specs {
		lon, err := f.placidusCusp(s.fraction, s.above)
		if err != nil {
			return out, err
		}
		out[i] = lon
	}
	return out, nil
}

// placidusCusp finds the ecliptic point that has covered fraction of its
// semi-diurnal arc from the meridian (above) or is fraction of its
// semi-nocturnal arc before the lower meridian (below).
func (f Frame) placidusCusp(fraction float64, above bool) (float64, error) {
	ra := func(ad float64) float64 {
		if above {
			return f.RAMC + fraction*(90+ad)
		}
		return f.RAMC + 180 - fraction*(90-ad)
	}

	lon := f.eclipticFromRA(ra(0))
	for range 100 {
		ad, err := f.ascensionalDifference(lon)
		if err != nil {
			return 0, err
		}
		next := f.eclipticFromRA(ra(ad))
		if math.Abs(signedArc(lon, next)) < 1e-10 {
			return next, nil
		}
		lon = next
	}
	return lon, nil
}

// koch trisects the semi-diurnal arc of the midheaven degree in time and
// takes the ascendant at each division.
func (f Frame) koch(mc float64) ([4]float64, error) {
	ad, err := f.ascensionalDifference(mc)
	if err != nil {
		return [4]float64{}, err
	}
	third := (90 + ad) / 3
	return [4]float64{
		f.ascendantAt(f.RAMC - 2*third),
		f.ascendantAt(f.RAMC - third),
		f.ascendantAt(f.RAMC + third),
		f.ascendantAt(f.RAMC + 2*third),
	}, nil
}

// quadrantCusps lays out cusps 1..12 from the angles and cusps 11, 12, 2, 3.
func quadrantCusps(asc, mc float64, inter [4]float64) [model.HouseCount]float64 {
	c11, c12, c2, c3 := inter[0], inter[1], inter[2], inter[3]
	return [model.HouseCount]float64{
		asc,
		c2,
		c3,
		norm360(mc + 180),
		norm360(c11 + 180),
		norm360(c12 + 180),
		norm360(asc + 180),
		norm360(c2 + 180),
		norm360(c3 + 180),
		mc,
		c11,
		c12,
	}
}
