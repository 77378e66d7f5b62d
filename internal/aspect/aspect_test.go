package aspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natal-cli/internal/model"
)

func pos(b model.Body, lon float64) model.BodyPosition {
	return model.BodyPosition{Body: b, Longitude: lon}
}

func TestSeparation(t *testing.T) {
	assert.InDelta(t, 90, Separation(10, 100), 1e-9)
	assert.InDelta(t, 20, Separation(350, 10), 1e-9)
	assert.InDelta(t, 20, Separation(10, 350), 1e-9)
	assert.InDelta(t, 180, Separation(0, 180), 1e-9)
	assert.InDelta(t, 0, Separation(-30, 330), 1e-9)
}

func TestDetect_ExactSquareIsStrong(t *testing.T) {
	d := NewDetector(nil)
	aspects := d.Detect([]model.BodyPosition{pos(model.Sun, 10), pos(model.Moon, 100)})

	require.Len(t, aspects, 1)
	a := aspects[0]
	assert.Equal(t, "Square", a.Name)
	assert.Equal(t, 90.0, a.ExactAngle)
	assert.InDelta(t, 0.0, a.Orb, 1e-9)
	assert.Equal(t, Strong, a.Strength)
	assert.Equal(t, model.Sun, a.BodyA)
	assert.Equal(t, model.Moon, a.BodyB)
}

func TestDetect_Symmetric(t *testing.T) {
	d := NewDetector(ExtendedAspects)
	cases := [][2]float64{{10, 100}, {350, 5}, {0, 181}, {12.5, 140.1}, {200, 47}}
	for _, c := range cases {
		ab := d.Detect([]model.BodyPosition{pos(model.Venus, c[0]), pos(model.Mars, c[1])})
		ba := d.Detect([]model.BodyPosition{pos(model.Mars, c[1]), pos(model.Venus, c[0])})
		require.Equal(t, len(ab), len(ba), "case %v", c)
		if len(ab) == 1 {
			assert.Equal(t, ab[0].Name, ba[0].Name)
			assert.InDelta(t, ab[0].Orb, ba[0].Orb, 1e-9)
			assert.Equal(t, ab[0].Strength, ba[0].Strength)
		}
	}
}

func TestDetect_StrengthThreshold(t *testing.T) {
	d := NewDetector(nil)

	strong := d.Detect([]model.BodyPosition{pos(model.Sun, 0), pos(model.Moon, 122.9)})
	require.Len(t, strong, 1)
	assert.Equal(t, "Trine", strong[0].Name)
	assert.Equal(t, Strong, strong[0].Strength)

	moderate := d.Detect([]model.BodyPosition{pos(model.Sun, 0), pos(model.Moon, 123)})
	require.Len(t, moderate, 1)
	assert.Equal(t, Moderate, moderate[0].Strength)
}

func TestDetect_OrbBoundaries(t *testing.T) {
	d := NewDetector(nil)

	assert.Len(t, d.Detect([]model.BodyPosition{pos(model.Sun, 0), pos(model.Moon, 8)}), 1)
	assert.Empty(t, d.Detect([]model.BodyPosition{pos(model.Sun, 0), pos(model.Moon, 8.5)}))
	assert.Len(t, d.Detect([]model.BodyPosition{pos(model.Sun, 0), pos(model.Moon, 66)}), 1)
	assert.Empty(t, d.Detect([]model.BodyPosition{pos(model.Sun, 0), pos(model.Moon, 66.5)}))
}

func TestDetect_FirstMatchWins(t *testing.T) {
	table := []Definition{
		{Name: "Wide", Angle: 100, Orb: 15},
		{Name: "Square", Angle: 90, Orb: 8},
	}
	d := NewDetector(table)

	// 91 is within both; table order decides, not the smaller orb.
	aspects := d.Detect([]model.BodyPosition{pos(model.Sun, 0), pos(model.Moon, 91)})
	require.Len(t, aspects, 1)
	assert.Equal(t, "Wide", aspects[0].Name)
	assert.InDelta(t, 9.0, aspects[0].Orb, 1e-9)
}

func TestDetect_EachPairOnce(t *testing.T) {
	d := NewDetector(nil)
	bodies := []model.BodyPosition{
		pos(model.Sun, 0),
		pos(model.Moon, 0.5),
		pos(model.Mercury, 1),
	}
	aspects := d.Detect(bodies)
	assert.Len(t, aspects, 3)
	for _, a := range aspects {
		assert.NotEqual(t, a.BodyA, a.BodyB)
		assert.Equal(t, "Conjunction", a.Name)
	}
}

func TestDetect_EmptyIsNotNil(t *testing.T) {
	d := NewDetector(nil)
	assert.NotNil(t, d.Detect(nil))
	assert.NotNil(t, d.Detect([]model.BodyPosition{pos(model.Sun, 0), pos(model.Moon, 40)}))
}

func TestDetect_OrbNeverExceedsDefinition(t *testing.T) {
	d := NewDetector(ExtendedAspects)
	var bodies []model.BodyPosition
	for i, b := range model.Planets {
		bodies = append(bodies, pos(b, float64(i)*37.3))
	}
	for _, a := range d.Detect(bodies) {
		max, ok := d.MaxOrb(a.Name)
		require.True(t, ok)
		assert.LessOrEqual(t, a.Orb, max)
	}
}

func TestTable(t *testing.T) {
	major, err := Table("major")
	require.NoError(t, err)
	assert.Len(t, major, 5)

	ext, err := Table("Extended")
	require.NoError(t, err)
	assert.Len(t, ext, 8)
	assert.Equal(t, "Quincunx", ext[5].Name)

	def, err := Table("")
	require.NoError(t, err)
	assert.Equal(t, MajorAspects, def)

	_, err = Table("harmonic")
	assert.Error(t, err)
}
