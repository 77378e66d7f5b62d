package chart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natal-cli/internal/aspect"
	"github.com/sells-group/natal-cli/internal/ephemeris"
	"github.com/sells-group/natal-cli/internal/instant"
	"github.com/sells-group/natal-cli/internal/model"
	"github.com/sells-group/natal-cli/pkg/geocode"
)

type fakeLocator struct {
	loc   model.GeoLocation
	err   error
	calls int
}

func (f *fakeLocator) Resolve(_ context.Context, place string) (model.GeoLocation, error) {
	f.calls++
	if f.err != nil {
		return model.NotFoundLocation(place), f.err
	}
	return f.loc, nil
}

type failingLayer struct{ name string }

func (l failingLayer) Name() string { return l.name }

func (l failingLayer) Compute(context.Context, ephemeris.Request) (*ephemeris.Result, error) {
	return nil, errors.New("ephemeris files unavailable")
}

type panickingSource struct{}

func (panickingSource) Positions(context.Context, instant.Instant, model.GeoLocation, model.HouseSystem, []model.Body) *ephemeris.Result {
	panic("corrupt table")
}

type countingObserver struct {
	completed, failed, degraded, approximate int
}

func (o *countingObserver) ChartCompleted(degraded, approximate bool) {
	o.completed++
	if degraded {
		o.degraded++
	}
	if approximate {
		o.approximate++
	}
}

func (o *countingObserver) ChartFailed() { o.failed++ }

var fixedNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func miamiLocation() model.GeoLocation {
	return model.GeoLocation{
		Latitude:      25.7617,
		Longitude:     -80.1918,
		FormattedName: "Miami, Florida, USA",
		Found:         true,
		Source:        "gazetteer",
		Timezone: &model.Timezone{
			ZoneName:         "America/New_York",
			UTCOffsetSeconds: -14400,
			CountryName:      "United States",
		},
	}
}

func miamiRequest() Request {
	return Request{BirthDate: "1995-10-08", BirthTime: "19:56", BirthPlace: "Miami, FL, USA"}
}

func newTestEngine(t *testing.T, loc Locator, layers []ephemeris.Layer, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(loc, ephemeris.NewChain(layers), opts...)
}

func TestEngine_MiamiEndToEnd(t *testing.T) {
	gaz, err := geocode.NewGazetteerProvider("")
	require.NoError(t, err)
	resolver := geocode.NewResolver([]geocode.Provider{gaz})

	obs := &countingObserver{}
	e := newTestEngine(t, resolver, []ephemeris.Layer{ephemeris.NewAnalyticLayer()}, WithObserver(obs))

	c, err := e.Calculate(context.Background(), miamiRequest())
	require.NoError(t, err)
	require.NotNil(t, c)

	// Location
	assert.True(t, c.Location.Found)
	assert.InDelta(t, 25.76, c.Location.Latitude, 0.01)
	assert.InDelta(t, -80.19, c.Location.Longitude, 0.01)
	require.NotNil(t, c.Location.Timezone)

	// Time: daylight saving time was in force on the birth date.
	assert.Equal(t, -4*3600, c.Instant.OffsetSeconds)
	assert.Equal(t, instant.OffsetTimezone, c.Instant.OffsetSource)
	assert.Equal(t, time.Date(1995, 10, 8, 23, 56, 0, 0, time.UTC), c.Instant.UTC)

	// Positions
	assert.Equal(t, ephemeris.LayerAnalytic, c.Layer)
	assert.False(t, c.Degraded)
	assert.False(t, c.Approximate)
	for _, b := range append(append([]model.Body{}, model.Planets...), model.Ascendant) {
		p, ok := c.Placement(b)
		require.True(t, ok, b)
		assert.GreaterOrEqual(t, p.DegreeInSign, 0.0)
		assert.Less(t, p.DegreeInSign, 30.0)
		assert.GreaterOrEqual(t, p.House, 1, b)
	}
	sun, _ := c.Placement(model.Sun)
	assert.Equal(t, "Libra", sun.Sign.String())
	assert.Len(t, c.Houses, model.HouseCount)

	// Aspects
	d := aspect.NewDetector(aspect.MajorAspects)
	require.NotEmpty(t, c.Aspects)
	for _, a := range c.Aspects {
		assert.True(t, a.BodyA.IsPlanet(), "%s-%s", a.BodyA, a.BodyB)
		assert.True(t, a.BodyB.IsPlanet(), "%s-%s", a.BodyA, a.BodyB)
		maxOrb, ok := d.MaxOrb(a.Name)
		require.True(t, ok)
		assert.LessOrEqual(t, a.Orb, maxOrb)
	}

	// Derived
	assert.Equal(t, SectNight, c.Sect)
	require.NotNil(t, c.SunTimes)
	assert.True(t, c.SunTimes.Sunset.Before(c.Instant.UTC))
	assert.True(t, c.SunTimes.Sunrise.Before(c.SunTimes.Sunset))
	_, err = uuid.Parse(c.ID)
	assert.NoError(t, err)
	assert.Equal(t, fixedNow, c.CalculatedAt)

	assert.Equal(t, 1, obs.completed)
	assert.Zero(t, obs.failed)
}

func TestEngine_PrimaryLayerFailureKeepsChartComplete(t *testing.T) {
	obs := &countingObserver{}
	e := newTestEngine(t, &fakeLocator{loc: miamiLocation()},
		[]ephemeris.Layer{failingLayer{name: ephemeris.LayerVSOP87}, ephemeris.NewAnalyticLayer()},
		WithObserver(obs))

	c, err := e.Calculate(context.Background(), miamiRequest())
	require.NoError(t, err)

	assert.Equal(t, ephemeris.LayerAnalytic, c.Layer)
	assert.True(t, c.Degraded)
	require.Len(t, c.Attempts, 1)
	assert.Equal(t, ephemeris.LayerVSOP87, c.Attempts[0].Layer)
	assert.Len(t, c.Houses, model.HouseCount)
	for _, b := range model.DefaultBodies {
		_, ok := c.Placement(b)
		assert.True(t, ok, b)
	}
	assert.Equal(t, 1, obs.degraded)
}

func TestEngine_AllLayersFailFallsBackToSynthetic(t *testing.T) {
	e := newTestEngine(t, &fakeLocator{loc: miamiLocation()},
		[]ephemeris.Layer{failingLayer{name: ephemeris.LayerVSOP87}, failingLayer{name: ephemeris.LayerAnalytic}})

	c, err := e.Calculate(context.Background(), miamiRequest())
	require.NoError(t, err)

	assert.Equal(t, ephemeris.LayerSynthetic, c.Layer)
	assert.True(t, c.Approximate)
	assert.Len(t, c.Attempts, 2)
	assert.Len(t, c.Houses, model.HouseCount)
	assert.Len(t, c.Placements, len(model.DefaultBodies)+2)
}

func TestEngine_LocationNotFound(t *testing.T) {
	gaz, err := geocode.NewGazetteerProvider("")
	require.NoError(t, err)
	obs := &countingObserver{}
	e := newTestEngine(t, geocode.NewResolver([]geocode.Provider{gaz}), nil, WithObserver(obs))

	req := miamiRequest()
	req.BirthPlace = "Nonexistent Place XYZ"
	c, err := e.Calculate(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, ErrLocationNotFound))
	assert.Contains(t, err.Error(), "Try a different city")
	assert.Equal(t, 1, obs.failed)
}

func TestEngine_EmptyPlace(t *testing.T) {
	gaz, err := geocode.NewGazetteerProvider("")
	require.NoError(t, err)
	e := newTestEngine(t, geocode.NewResolver([]geocode.Provider{gaz}), nil)

	req := miamiRequest()
	req.BirthPlace = "   "
	_, err = e.Calculate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, geocode.ErrEmptyInput))
}

func TestEngine_MissingTimezone(t *testing.T) {
	loc := miamiLocation()
	loc.Timezone = nil

	strict := newTestEngine(t, &fakeLocator{loc: loc}, nil, WithDefaults(Defaults{
		HouseSystem: model.Placidus,
		AspectSet:   "major",
	}))
	_, err := strict.Calculate(context.Background(), miamiRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingTimezone))

	lenient := newTestEngine(t, &fakeLocator{loc: loc}, []ephemeris.Layer{ephemeris.NewAnalyticLayer()})
	c, err := lenient.Calculate(context.Background(), miamiRequest())
	require.NoError(t, err)
	assert.True(t, c.Approximate)
	assert.Equal(t, instant.OffsetLongitudeEstimate, c.Instant.OffsetSource)
	assert.Equal(t, -5*3600, c.Instant.OffsetSeconds)
	assert.Equal(t, ephemeris.LayerAnalytic, c.Layer)
}

func TestEngine_InvalidTime(t *testing.T) {
	loc := &fakeLocator{loc: miamiLocation()}
	e := newTestEngine(t, loc, nil)

	req := miamiRequest()
	req.BirthTime = "24:10"
	_, err := e.Calculate(context.Background(), req)
	require.Error(t, err)

	var terr *instant.InvalidTimeError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "hour", terr.Field)
	assert.Zero(t, loc.calls, "time is validated before the place is resolved")
}

func TestEngine_InvalidRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"house system", func(r *Request) { r.HouseSystem = "Z" }},
		{"aspect set", func(r *Request) { r.AspectSet = "minor" }},
		{"unknown body", func(r *Request) { r.Bodies = []string{"sun", "vulcan"} }},
		{"angle as body", func(r *Request) { r.Bodies = []string{"ascendant"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, &fakeLocator{loc: miamiLocation()}, nil)
			req := miamiRequest()
			tt.mutate(&req)

			_, err := e.Calculate(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest), err.Error())
		})
	}
}

func TestEngine_RequestOverrides(t *testing.T) {
	e := newTestEngine(t, &fakeLocator{loc: miamiLocation()}, []ephemeris.Layer{ephemeris.NewAnalyticLayer()})

	req := miamiRequest()
	req.HouseSystem = "w"
	req.Bodies = []string{"Sun", "Moon"}
	req.AspectSet = "extended"
	c, err := e.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.WholeSign, c.HouseSystem)
	assert.Len(t, c.Placements, 4, "two bodies plus both angles")
	for _, h := range c.Houses {
		assert.InDelta(t, 0, h.DegreeInSign, 1e-9, "whole sign cusps start signs")
	}
}

func TestEngine_RecoversPanics(t *testing.T) {
	obs := &countingObserver{}
	e := NewEngine(&fakeLocator{loc: miamiLocation()}, panickingSource{}, WithObserver(obs))

	c, err := e.Calculate(context.Background(), miamiRequest())
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "internal error")
	assert.Equal(t, 1, obs.failed)
}

func TestEngine_CancelledContext(t *testing.T) {
	loc := &fakeLocator{loc: miamiLocation()}
	e := newTestEngine(t, loc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Calculate(ctx, miamiRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, loc.calls)
}

func TestEngine_Deterministic(t *testing.T) {
	e := newTestEngine(t, &fakeLocator{loc: miamiLocation()}, []ephemeris.Layer{ephemeris.NewAnalyticLayer()})

	a, err := e.Calculate(context.Background(), miamiRequest())
	require.NoError(t, err)
	b, err := e.Calculate(context.Background(), miamiRequest())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Instant.JulianDay, b.Instant.JulianDay)
	assert.Equal(t, a.Placements, b.Placements)
	assert.Equal(t, a.Aspects, b.Aspects)
}

func TestDefaultsFromConfig(t *testing.T) {
	d, err := DefaultsFromConfig(configChart("K", "extended", []string{"sun", "moon"}))
	require.NoError(t, err)
	assert.Equal(t, model.Koch, d.HouseSystem)
	assert.Equal(t, []model.Body{model.Sun, model.Moon}, d.Bodies)

	_, err = DefaultsFromConfig(configChart("Z", "major", nil))
	assert.Error(t, err)
	_, err = DefaultsFromConfig(configChart("P", "minor", nil))
	assert.Error(t, err)
	_, err = DefaultsFromConfig(configChart("P", "major", []string{"midheaven"}))
	assert.Error(t, err)
}
