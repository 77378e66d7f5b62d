package ephemeris

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	pp "github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/model"
)

var vsopBodies = map[model.Body]int{
	model.Mercury: pp.Mercury,
	model.Venus:   pp.Venus,
	model.Mars:    pp.Mars,
	model.Jupiter: pp.Jupiter,
	model.Saturn:  pp.Saturn,
	model.Uranus:  pp.Uranus,
	model.Neptune: pp.Neptune,
}

// VSOP87Layer computes apparent positions from the full VSOP87B series.
// The series files are read from dir once, on first use, and shared
// read-only afterwards.
type VSOP87Layer struct {
	dir string

	once    sync.Once
	loadErr error
	earth   *pp.V87Planet
	planets map[model.Body]*pp.V87Planet
}

// NewVSOP87Layer creates a layer that reads VSOP87B.* files from dir.
func NewVSOP87Layer(dir string) *VSOP87Layer {
	return &VSOP87Layer{dir: dir}
}

// Name implements Layer.
func (l *VSOP87Layer) Name() string { return LayerVSOP87 }

func (l *VSOP87Layer) load() error {
	l.once.Do(func() {
		// The series parser indexes fixed-width columns; a corrupt file panics.
		defer func() {
			if r := recover(); r != nil {
				l.loadErr = eris.Errorf("ephemeris: corrupt vsop87 series in %s: %v", l.dir, r)
			}
		}()
		if l.dir == "" {
			l.loadErr = eris.New("ephemeris: vsop87 data directory not configured")
			return
		}
		earth, err := pp.LoadPlanetPath(pp.Earth, l.dir)
		if err != nil {
			l.loadErr = eris.Wrapf(err, "ephemeris: load vsop87 earth from %s", l.dir)
			return
		}
		planets := make(map[model.Body]*pp.V87Planet, len(vsopBodies))
		for b, id := range vsopBodies {
			p, err := pp.LoadPlanetPath(id, l.dir)
			if err != nil {
				l.loadErr = eris.Wrapf(err, "ephemeris: load vsop87 %s from %s", b, l.dir)
				return
			}
			planets[b] = p
		}
		l.earth = earth
		l.planets = planets
		zap.L().Debug("ephemeris: vsop87 series loaded", zap.String("dir", l.dir))
	})
	return l.loadErr
}

// Ready loads the series files and reports whether they are usable.
func (l *VSOP87Layer) Ready() error {
	return l.load()
}

// Compute implements Layer. Longitudes are apparent: light time and
// nutation in longitude are applied, and sidereal time is apparent.
func (l *VSOP87Layer) Compute(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ephemeris: vsop87")
	}
	if err := l.load(); err != nil {
		return nil, err
	}

	jde := TerrestrialTime(req.JulianDay)

	bodies, err := bodyPositions(req.Bodies, jde, l.longitude)
	if err != nil {
		return nil, err
	}

	_, deps := nutation.Nutation(jde)
	eps := nutation.MeanObliquity(jde).Deg() + deps.Deg()
	gst := float64(sidereal.Apparent(req.JulianDay)) / 240
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

func (l *VSOP87Layer) longitude(b model.Body, jde float64) (float64, error) {
	dpsi, _ := nutation.Nutation(jde)
	nut := dpsi.Deg()

	switch b {
	case model.Sun:
		lon, _, _ := solar.ApparentVSOP87(l.earth, jde)
		return lon.Deg(), nil
	case model.Moon:
		lon, _, _ := moonposition.Position(jde)
		return lon.Deg() + nut, nil
	case model.Pluto:
		return precessFromJ2000(geocentricLongitude(plutoHeliocentric, l.earth2000, jde), jde) + nut, nil
	case model.Chiron:
		return precessFromJ2000(geocentricLongitude(chironElements.heliocentric, l.earth2000, jde), jde) + nut, nil
	case model.MeanNode:
		return moonposition.Node(jde).Deg() + nut, nil
	case model.TrueNode:
		return trueNode(jde) + nut, nil
	case model.Lilith:
		return meanApogee(jde) + nut, nil
	}

	p, ok := l.planets[b]
	if !ok {
		return 0, eris.Errorf("ephemeris: vsop87 layer cannot compute %q", b)
	}
	planet := func(t float64) vec {
		lon, lat, r := p.Position(t)
		return fromSpherical(lon.Deg(), lat.Deg(), r)
	}
	return geocentricLongitude(planet, l.earthOfDate, jde) + nut, nil
}

func (l *VSOP87Layer) earthOfDate(jde float64) vec {
	lon, lat, r := l.earth.Position(jde)
	return fromSpherical(lon.Deg(), lat.Deg(), r)
}

func (l *VSOP87Layer) earth2000(jde float64) vec {
	lon, lat, r := l.earth.Position2000(jde)
	return fromSpherical(lon.Deg(), lat.Deg(), r)
}
