package ephemeris

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/pluto"
	"github.com/soniakeys/meeus/v3/sidereal"

	"github.com/sells-group/natal-cli/internal/model"
)

// speedStep is the half-width in days of the central difference used for
// body speeds.
const speedStep = 0.5

// longitudeFunc returns the geocentric ecliptic longitude of b at jde.
type longitudeFunc func(b model.Body, jde float64) (float64, error)

// bodyPositions evaluates fn for every body with a central-difference speed.
func bodyPositions(bodies []model.Body, jde float64, fn longitudeFunc) ([]model.BodyPosition, error) {
	out := make([]model.BodyPosition, 0, len(bodies))
	for _, b := range bodies {
		lon, err := fn(b, jde)
		if err != nil {
			return nil, err
		}
		before, err := fn(b, jde-speedStep)
		if err != nil {
			return nil, err
		}
		after, err := fn(b, jde+speedStep)
		if err != nil {
			return nil, err
		}
		out = append(out, model.BodyPosition{
			Body:      b,
			Longitude: norm360(lon),
			Speed:     signedArc(before, after) / (2 * speedStep),
		})
	}
	return out, nil
}

// AnalyticLayer computes positions from mean orbital elements and the
// truncated lunar and Pluto theories. It needs no data files.
type AnalyticLayer struct{}

// NewAnalyticLayer creates an AnalyticLayer.
func NewAnalyticLayer() *AnalyticLayer {
	return &AnalyticLayer{}
}

// Name implements Layer.
func (l *AnalyticLayer) Name() string { return LayerAnalytic }

// Compute implements Layer. Longitudes are geometric, referred to the mean
// equinox of date; sidereal time is mean.
func (l *AnalyticLayer) Compute(_ context.Context, req Request) (*Result, error) {
	jde := TerrestrialTime(req.JulianDay)

	bodies, err := bodyPositions(req.Bodies, jde, l.longitude)
	if err != nil {
		return nil, err
	}

	eps := nutation.MeanObliquity(jde).Deg()
	gst := float64(sidereal.Mean(req.JulianDay)) / 240
	set, err := NewFrame(gst+req.Longitude, eps, req.Latitude).Houses(req.HouseSystem)
	if err != nil {
		return nil, err
	}

	return &Result{
		Bodies:    bodies,
		Houses:    set.Cusps,
		Ascendant: set.Ascendant,
		Midheaven: set.Midheaven,
	}, nil
}

func (l *AnalyticLayer) longitude(b model.Body, jde float64) (float64, error) {
	switch b {
	case model.Sun:
		e := earthElements.heliocentric(jde)
		return precessFromJ2000(vec{-e.x, -e.y, -e.z}.longitude(), jde), nil
	case model.Moon:
		lon, _, _ := moonposition.Position(jde)
		return lon.Deg(), nil
	case model.Pluto:
		return precessFromJ2000(geocentricLongitude(plutoHeliocentric, earthElements.heliocentric, jde), jde), nil
	case model.Chiron:
		return precessFromJ2000(geocentricLongitude(chironElements.heliocentric, earthElements.heliocentric, jde), jde), nil
	case model.MeanNode:
		return meanNode(jde), nil
	case model.TrueNode:
		return trueNode(jde), nil
	case model.Lilith:
		return meanApogee(jde), nil
	}
	el, ok := jplElements[b]
	if !ok {
		return 0, eris.Errorf("ephemeris: analytic layer cannot compute %q", b)
	}
	return precessFromJ2000(geocentricLongitude(el.heliocentric, earthElements.heliocentric, jde), jde), nil
}

// plutoHeliocentric is Pluto's J2000 heliocentric position.
func plutoHeliocentric(jde float64) vec {
	lon, lat, r := pluto.Heliocentric(jde)
	return fromSpherical(lon.Deg(), lat.Deg(), r)
}
