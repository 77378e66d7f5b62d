package zodiac

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		lon    float64
		sign   Sign
		degree float64
	}{
		{0, Aries, 0},
		{29.999, Aries, 29.999},
		{30, Taurus, 0},
		{195.25, Libra, 15.25},
		{359.5, Pisces, 29.5},
		{360, Aries, 0},
		{-10, Pisces, 20},
		{-360, Aries, 0},
		{725.5, Aries, 5.5},
	}
	for _, tt := range tests {
		got := Classify(tt.lon)
		assert.Equal(t, tt.sign, got.Sign, "lon=%v", tt.lon)
		assert.InDelta(t, tt.degree, got.DegreeInSign, 1e-9, "lon=%v", tt.lon)
	}
}

func TestClassify_DegreeInRange(t *testing.T) {
	for lon := -1080.0; lon <= 1080.0; lon += 0.37 {
		p := Classify(lon)
		assert.GreaterOrEqual(t, p.DegreeInSign, 0.0)
		assert.Less(t, p.DegreeInSign, 30.0)

		norm := math.Mod(lon, 360)
		if norm < 0 {
			norm += 360
		}
		assert.Equal(t, Sign(int(math.Floor(norm/30))%12), p.Sign, "lon=%v", lon)
	}
}

func TestClassify_Periodic(t *testing.T) {
	for _, lon := range []float64{0.5, 45.25, 123.75, 270.125, 359.875} {
		base := Classify(lon)
		for k := -3; k <= 3; k++ {
			shifted := Classify(lon + 360*float64(k))
			assert.Equal(t, base.Sign, shifted.Sign)
			assert.InDelta(t, base.DegreeInSign, shifted.DegreeInSign, 1e-9)
		}
	}
}

func TestSignMetadata(t *testing.T) {
	assert.Equal(t, "Aries", Aries.String())
	assert.Equal(t, "Pisces", Pisces.String())
	assert.Equal(t, "♎", Libra.Symbol())
	assert.Equal(t, Fire, Leo.Element())
	assert.Equal(t, Water, Scorpio.Element())
	assert.Equal(t, Earth, Capricorn.Element())
	assert.Equal(t, Air, Aquarius.Element())
	assert.Equal(t, Cardinal, Capricorn.Modality())
	assert.Equal(t, Fixed, Taurus.Modality())
	assert.Equal(t, Mutable, Pisces.Modality())
	assert.Len(t, Signs(), 12)
}

func TestPositionFormatting(t *testing.T) {
	p := Classify(195.2345)
	assert.Equal(t, "Libra 15.23°", p.String())
	assert.Equal(t, "15°14′ Libra", p.DMS())
	assert.InDelta(t, 195.2345, p.Longitude(), 1e-9)
	assert.Equal(t, "Aries 0.00°", Format(360))
}

func TestPositionFormatting_NeverRoundsToThirty(t *testing.T) {
	assert.Equal(t, "Taurus 29.99°", Format(59.9999))
	assert.Equal(t, "Taurus 29.99°", Format(59.996))
	assert.Equal(t, "Libra 15.23°", Format(195.23))
	assert.Equal(t, "Pisces 29.99°", Format(359.99999999))

	p := Position{Sign: Gemini, DegreeInSign: 12.5}
	assert.Equal(t, "Gemini 12.50°", p.String())
}

func TestSignJSON(t *testing.T) {
	data, err := json.Marshal(Classify(100))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sign":"Cancer","degree_in_sign":10}`, string(data))

	var p Position
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, Cancer, p.Sign)

	assert.Error(t, json.Unmarshal([]byte(`{"sign":"Ophiuchus"}`), &p))
}
