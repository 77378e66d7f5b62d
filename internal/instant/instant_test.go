package instant

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natal-cli/internal/model"
)

func miami(offset int) model.GeoLocation {
	return model.GeoLocation{
		Latitude:      25.7617,
		Longitude:     -80.1918,
		FormattedName: "Miami, Florida, USA",
		Found:         true,
		Timezone: &model.Timezone{
			ZoneName:         "America/New_York",
			UTCOffsetSeconds: offset,
			CountryName:      "United States",
		},
	}
}

func TestNormalize_UsesTimezoneOffset(t *testing.T) {
	inst, err := Normalize("1995-10-08", "19:56", miami(-4*3600))
	require.NoError(t, err)

	assert.Equal(t, time.Date(1995, 10, 8, 23, 56, 0, 0, time.UTC), inst.UTC)
	assert.Equal(t, "1995-10-08T19:56:00-04:00", inst.Local)
	assert.Equal(t, -4*3600, inst.OffsetSeconds)
	assert.Equal(t, OffsetTimezone, inst.OffsetSource)
	assert.False(t, inst.Approximate())
	// 1995-10-08 23:56 UT
	assert.InDelta(t, 2449999.497222, inst.JulianDay, 1e-5)
}

func TestNormalize_LongitudeEstimate(t *testing.T) {
	geo := miami(0)
	geo.Timezone = nil

	inst, err := Normalize("1995-10-08", "19:56", geo)
	require.NoError(t, err)

	// round(-80.19 / 15) = -5 hours
	assert.Equal(t, -5*3600, inst.OffsetSeconds)
	assert.Equal(t, OffsetLongitudeEstimate, inst.OffsetSource)
	assert.True(t, inst.Approximate())
	assert.Equal(t, time.Date(1995, 10, 9, 0, 56, 0, 0, time.UTC), inst.UTC)
}

func TestNormalize_Deterministic(t *testing.T) {
	a, err := Normalize("1987-02-28", "06:05", miami(-5*3600))
	require.NoError(t, err)
	b, err := Normalize("1987-02-28", "06:05", miami(-5*3600))
	require.NoError(t, err)

	assert.Equal(t, a.JulianDay, b.JulianDay)
	assert.Equal(t, a.UTC, b.UTC)
}

func TestNormalize_JulianDayIncreases(t *testing.T) {
	geo := miami(0)
	earlier, err := Normalize("2000-01-01", "11:59", geo)
	require.NoError(t, err)
	later, err := Normalize("2000-01-01", "12:00", geo)
	require.NoError(t, err)

	assert.Less(t, earlier.JulianDay, later.JulianDay)
	assert.InDelta(t, 2451545.0, later.JulianDay, 1e-9)
}

func TestNormalize_InvalidFields(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		clock string
		field string
	}{
		{"bad date", "1995-13-08", "10:00", "date"},
		{"not a date", "yesterday", "10:00", "date"},
		{"hour too large", "1995-10-08", "24:00", "hour"},
		{"negative hour", "1995-10-08", "-1:00", "hour"},
		{"minute too large", "1995-10-08", "12:60", "minute"},
		{"second too large", "1995-10-08", "12:30:61", "second"},
		{"missing minute", "1995-10-08", "12", "time"},
		{"garbage minute", "1995-10-08", "12:xx", "minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.date, tt.clock, miami(0))
			require.Error(t, err)

			var ite *InvalidTimeError
			require.True(t, errors.As(err, &ite))
			assert.Equal(t, tt.field, ite.Field)
		})
	}
}

func TestNormalize_TruncatesSubMinuteOffsets(t *testing.T) {
	geo := miami(-19176) // New York local mean time
	inst, err := Normalize("1880-06-01", "12:00", geo)
	require.NoError(t, err)

	assert.Equal(t, -19140, inst.OffsetSeconds)
	assert.Equal(t, "1880-06-01T12:00:00-05:19", inst.Local)
}

func TestEstimateOffset(t *testing.T) {
	assert.Equal(t, 0, EstimateOffset(7.4))
	assert.Equal(t, 3600, EstimateOffset(7.5))
	assert.Equal(t, -5*3600, EstimateOffset(-80.19))
	assert.Equal(t, 9*3600, EstimateOffset(139.69))
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "+00:00", FormatOffset(0))
	assert.Equal(t, "+05:30", FormatOffset(19800))
	assert.Equal(t, "-04:00", FormatOffset(-14400))
	assert.Equal(t, "-03:30", FormatOffset(-12600))
}
