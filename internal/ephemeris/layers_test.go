package ephemeris

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natal-cli/internal/model"
)

func TestDeltaT(t *testing.T) {
	assert.InDelta(t, 63.86, DeltaT(2000), 1e-9)
	assert.InDelta(t, -2.79, DeltaT(1900), 1e-9)
	assert.InDelta(t, 29.07, DeltaT(1950), 1e-9)
	assert.InDelta(t, 66.70, DeltaT(2010), 0.01)
	assert.Greater(t, DeltaT(1500), 100.0)

	assert.InDelta(t, 63.86/86400, TerrestrialTime(J2000)-J2000, 1e-6)
}

func TestAnalytic_Sun(t *testing.T) {
	// 1992 October 13.0 TD: apparent longitude 199.906
	lon, err := NewAnalyticLayer().longitude(model.Sun, 2448908.5)
	require.NoError(t, err)
	assert.InDelta(t, 199.906, lon, 0.05)
}

func TestAnalytic_Moon(t *testing.T) {
	// 1992 April 12.0 TD: geometric longitude 133.162655
	lon, err := NewAnalyticLayer().longitude(model.Moon, 2448724.5)
	require.NoError(t, err)
	assert.InDelta(t, 133.162655, lon, 1e-4)
}

func TestAnalytic_Venus(t *testing.T) {
	// 1992 December 20.0 TD: apparent longitude 313.081
	lon, err := NewAnalyticLayer().longitude(model.Venus, 2448976.5)
	require.NoError(t, err)
	assert.InDelta(t, 313.081, lon, 0.1)
}

func TestLunarPoints(t *testing.T) {
	assert.InDelta(t, 125.0445479, meanNode(J2000), 1e-9)
	assert.InDelta(t, 263.3532465, meanApogee(J2000), 1e-9)

	for _, jde := range []float64{2440000.5, J2000, 2460000.5} {
		diff := signedArc(meanNode(jde), trueNode(jde))
		assert.LessOrEqual(t, diff, 2.1)
		assert.GreaterOrEqual(t, diff, -2.1)
	}
}

func TestAnalytic_Compute(t *testing.T) {
	req := miamiRequest()
	res, err := NewAnalyticLayer().Compute(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, Validate(req, res))

	sun, ok := res.Position(model.Sun)
	require.True(t, ok)
	assert.InDelta(t, 195.5, sun.Longitude, 1.5, "mid Libra")
	assert.InDelta(t, 0.99, sun.Speed, 0.03)

	moon, _ := res.Position(model.Moon)
	assert.Greater(t, moon.Speed, 11.0)
	assert.Less(t, moon.Speed, 15.5)

	node, _ := res.Position(model.MeanNode)
	assert.InDelta(t, -0.053, node.Speed, 0.001)
	assert.True(t, node.Retrograde())
}

func TestAnalytic_ComputeCircumpolar(t *testing.T) {
	req := miamiRequest()
	req.Latitude = 78.2 // Longyearbyen
	req.Longitude = 15.6

	// Some sidereal time at this latitude leaves Placidus undefined.
	failures := 0
	for h := 0; h < 24; h++ {
		req.JulianDay = 2449999.5 + float64(h)/24
		req.UTC = time.Date(1995, 10, 9, h, 0, 0, 0, time.UTC)
		if _, err := NewAnalyticLayer().Compute(context.Background(), req); err != nil {
			failures++
		}
	}
	assert.Positive(t, failures)

	req.HouseSystem = model.EqualHouses
	res, err := NewAnalyticLayer().Compute(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, Validate(req, res))
}

func TestAnalytic_ComputePolarPorphyry(t *testing.T) {
	req := miamiRequest()
	req.Latitude = 69.65 // Tromsø
	req.Longitude = 18.96
	req.HouseSystem = model.Porphyry

	for h := 0; h < 24; h++ {
		req.JulianDay = 2450072.5 + float64(h)/24
		req.UTC = time.Date(1995, 12, 21, h, 0, 0, 0, time.UTC)

		res, err := NewAnalyticLayer().Compute(context.Background(), req)
		require.NoError(t, err, "hour %d", h)
		require.NoError(t, Validate(req, res), "hour %d", h)
		assert.Less(t, model.ForwardArc(res.Midheaven, res.Ascendant), 180.0, "hour %d", h)
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	req := miamiRequest()
	a := synthesize(req)
	b := synthesize(req)
	assert.Equal(t, a, b)

	req.Latitude += 0.5
	c := synthesize(req)
	assert.NotEqual(t, a.Bodies[1].Longitude, c.Bodies[1].Longitude)
}

func TestSynthetic_Valid(t *testing.T) {
	req := miamiRequest()
	res, err := NewSyntheticLayer().Compute(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, Validate(req, res))
	assert.InDelta(t, res.Houses[9].Longitude, res.Midheaven, 1e-9)
	assert.InDelta(t, res.Ascendant, res.Houses[0].Longitude, 1e-9)
}

func TestSynthetic_IgnoresHouseSystem(t *testing.T) {
	req := miamiRequest()
	placidus := synthesize(req)
	req.HouseSystem = model.WholeSign
	whole := synthesize(req)
	assert.Equal(t, placidus.Houses, whole.Houses)
}

func TestSyntheticAscendant(t *testing.T) {
	// fractional day 0.75 is 18 hours on the clock, 270 degrees
	assert.InDelta(t, 350, SyntheticAscendant(2451545.75, -80), 1e-6)
	assert.InDelta(t, 270, SyntheticAscendant(2451545.75, 0), 1e-6)
	assert.InDelta(t, 0, SyntheticAscendant(2451545.0, 0), 1e-6)
}

func TestSyntheticHouses_VaryByDate(t *testing.T) {
	a := FallbackHouses(100, time.Date(1995, 10, 8, 0, 0, 0, 0, time.UTC))
	b := FallbackHouses(100, time.Date(1995, 10, 9, 0, 0, 0, 0, time.UTC))
	assert.NotEqual(t, a, b)

	for i, c := range a {
		assert.InDelta(t, 0, signedArc(100+30*float64(i), c.Longitude), houseVariation)
	}
	assert.InDelta(t, 100, a[0].Longitude, 1e-9)
}
