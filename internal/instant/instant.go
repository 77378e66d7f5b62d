// Package instant turns a local birth date and time into an absolute instant
// and a Julian Day.
package instant

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/soniakeys/meeus/v3/julian"

	"github.com/sells-group/natal-cli/internal/model"
)

// OffsetSource records where the UTC offset of an Instant came from.
type OffsetSource string

const (
	// OffsetTimezone means the offset was taken from the location's timezone.
	OffsetTimezone OffsetSource = "timezone"
	// OffsetLongitudeEstimate means the offset was estimated as round(longitude/15)
	// hours because the location carried no timezone. Lower precision.
	OffsetLongitudeEstimate OffsetSource = "longitude_estimate"
)

// Instant is an absolute moment plus its continuous astronomical time value.
type Instant struct {
	UTC           time.Time    `json:"utc"`
	JulianDay     float64      `json:"julian_day"`
	Local         string       `json:"local"` // ISO-8601 with numeric offset
	OffsetSeconds int          `json:"offset_seconds"`
	OffsetSource  OffsetSource `json:"offset_source"`
}

// Approximate reports whether the offset was estimated from longitude.
func (i Instant) Approximate() bool {
	return i.OffsetSource == OffsetLongitudeEstimate
}

// InvalidTimeError names the date or time field that failed validation.
type InvalidTimeError struct {
	Field string // "date", "time", "hour", "minute" or "second"
	Value string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("instant: invalid %s %q", e.Field, e.Value)
}

// LocalDateTime is a wall-clock date and time without zone.
type LocalDateTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// ParseLocal parses "YYYY-MM-DD" and "HH:MM" (or "HH:MM:SS").
func ParseLocal(date, clock string) (LocalDateTime, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return LocalDateTime{}, &InvalidTimeError{Field: "date", Value: date}
	}

	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return LocalDateTime{}, &InvalidTimeError{Field: "time", Value: clock}
	}

	fields := []struct {
		name string
		max  int
	}{{"hour", 23}, {"minute", 59}, {"second", 59}}

	values := [3]int{}
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 || n > fields[i].max {
			return LocalDateTime{}, &InvalidTimeError{Field: fields[i].name, Value: p}
		}
		values[i] = n
	}

	return LocalDateTime{
		Year:   d.Year(),
		Month:  d.Month(),
		Day:    d.Day(),
		Hour:   values[0],
		Minute: values[1],
		Second: values[2],
	}, nil
}

// Normalize parses date and clock and converts them with Normalize.
func Normalize(date, clock string, geo model.GeoLocation) (Instant, error) {
	local, err := ParseLocal(date, clock)
	if err != nil {
		return Instant{}, err
	}
	return NormalizeLocal(local, geo)
}

// NormalizeLocal converts a local wall-clock time at geo into an Instant.
// The location's timezone offset is used when present; otherwise the offset is
// estimated from longitude. The result depends only on the inputs, never on
// the process timezone.
func NormalizeLocal(local LocalDateTime, geo model.GeoLocation) (Instant, error) {
	offset, source := resolveOffset(geo)

	iso := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d%s",
		local.Year, int(local.Month), local.Day, local.Hour, local.Minute, local.Second, FormatOffset(offset))

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return Instant{}, eris.Wrapf(err, "instant: parse %s", iso)
	}
	utc := t.UTC()

	return Instant{
		UTC:           utc,
		JulianDay:     julian.TimeToJD(utc),
		Local:         iso,
		OffsetSeconds: offset,
		OffsetSource:  source,
	}, nil
}

// EstimateOffset approximates a UTC offset from longitude, in seconds.
func EstimateOffset(longitude float64) int {
	return int(math.Round(longitude/15)) * 3600
}

// FormatOffset renders seconds east of UTC as "+hh:mm".
func FormatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

func resolveOffset(geo model.GeoLocation) (int, OffsetSource) {
	if geo.Timezone != nil {
		// Local mean time offsets carry seconds; ISO-8601 offsets stop at minutes.
		return (geo.Timezone.UTCOffsetSeconds / 60) * 60, OffsetTimezone
	}
	return EstimateOffset(geo.Longitude), OffsetLongitudeEstimate
}
