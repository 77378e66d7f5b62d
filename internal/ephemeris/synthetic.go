package ephemeris

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sells-group/natal-cli/internal/model"
)

// houseVariation bounds the date-seeded perturbation of synthetic cusps.
const houseVariation = 4.0

// meanMotion is a body's mean geocentric longitude at J2000 and its daily
// motion, plus the spread of the seeded deviation around it.
type meanMotion struct {
	lonJ2000 float64
	perDay   float64
	spread   float64
}

var syntheticMotions = map[model.Body]meanMotion{
	model.Sun:      {280.460, 0.9856474, 1},
	model.Moon:     {218.316, 13.176396, 6},
	model.Mercury:  {280.460, 0.9856474, 27},
	model.Venus:    {280.460, 0.9856474, 46},
	model.Mars:     {355.433, 0.5240207, 30},
	model.Jupiter:  {34.351, 0.0830853, 10},
	model.Saturn:   {50.077, 0.0334443, 6},
	model.Uranus:   {314.055, 0.0117258, 3},
	model.Neptune:  {304.349, 0.0059810, 2},
	model.Pluto:    {238.929, 0.0039757, 2},
	model.MeanNode: {125.045, -0.0529538, 0},
	model.TrueNode: {125.045, -0.0529538, 1.5},
	model.Lilith:   {263.353, 0.1114040, 0},
	model.Chiron:   {251.000, 0.0194500, 5},
}

// SyntheticLayer produces plausible but not astronomically accurate
// positions. Every value is a pure function of the request, so identical
// requests give identical charts. Houses are always equal-sized around a
// clock-derived ascendant regardless of the requested system.
type SyntheticLayer struct{}

// NewSyntheticLayer creates a SyntheticLayer.
func NewSyntheticLayer() *SyntheticLayer {
	return &SyntheticLayer{}
}

// Name implements Layer.
func (l *SyntheticLayer) Name() string { return LayerSynthetic }

// Compute implements Layer. It never fails.
func (l *SyntheticLayer) Compute(_ context.Context, req Request) (*Result, error) {
	return synthesize(req), nil
}

func synthesize(req Request) *Result {
	utc := req.UTC
	if utc.IsZero() {
		utc = timeFromJulianDay(req.JulianDay)
	}
	days := req.JulianDay - J2000

	bodies := make([]model.BodyPosition, 0, len(req.Bodies))
	for _, b := range req.Bodies {
		mm, ok := syntheticMotions[b]
		if !ok {
			mm = meanMotion{lonJ2000: 0, perDay: 1, spread: 180}
		}
		rng := seededRand(bodySeed(utc, req.Latitude, req.Longitude, b))
		jitter := (rng.Float64()*2 - 1) * mm.spread
		bodies = append(bodies, model.BodyPosition{
			Body:      b,
			Longitude: norm360(mm.lonJ2000 + mm.perDay*days + jitter),
			Speed:     mm.perDay,
		})
	}

	asc := SyntheticAscendant(req.JulianDay, req.Longitude)
	houses := FallbackHouses(asc, utc)

	return &Result{
		Bodies:    bodies,
		Houses:    houses,
		Ascendant: asc,
		Midheaven: houses[9].Longitude,
	}
}

// SyntheticAscendant reads the fractional Julian Day as a 24-hour clock at
// 15 degrees per hour and subtracts the observer's longitude.
func SyntheticAscendant(jd, longitude float64) float64 {
	frac := jd - math.Floor(jd)
	return norm360(frac*24*15 - longitude)
}

// FallbackHouses lays 30-degree houses from asc, each cusp after the first
// shifted by up to houseVariation degrees seeded from the calendar date.
func FallbackHouses(asc float64, utc time.Time) []model.HouseCusp {
	rng := seededRand(dateSeed(utc))
	cusps := make([]model.HouseCusp, model.HouseCount)
	for i := range cusps {
		shift := 0.0
		if i > 0 {
			shift = (rng.Float64()*2 - 1) * houseVariation
		}
		cusps[i] = model.HouseCusp{
			House:     i + 1,
			Longitude: norm360(asc + 30*float64(i) + shift),
		}
	}
	return cusps
}

func bodySeed(utc time.Time, lat, lon float64, b model.Body) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%.6f|%.6f|%s", utc.Unix(), lat, lon, b)
	return h.Sum64()
}

func dateSeed(utc time.Time) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%04d-%02d-%02d", utc.Year(), int(utc.Month()), utc.Day())
	return h.Sum64()
}

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// timeFromJulianDay converts a UT Julian Day to a UTC time, to the second.
func timeFromJulianDay(jd float64) time.Time {
	secs := math.Round((jd - 2440587.5) * 86400)
	return time.Unix(int64(secs), 0).UTC()
}
