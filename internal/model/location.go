package model

import (
	"fmt"
	"time"
)

// GeoLocation is a resolved birth place.
type GeoLocation struct {
	Latitude      float64   `json:"latitude" yaml:"latitude"`
	Longitude     float64   `json:"longitude" yaml:"longitude"`
	FormattedName string    `json:"formatted_name" yaml:"formatted_name"`
	Timezone      *Timezone `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Found         bool      `json:"found" yaml:"found"`
	Source        string    `json:"source,omitempty" yaml:"source,omitempty"` // "gazetteer", "google", "cache"
}

// Timezone is the zone attached to a GeoLocation when the data source provides one.
type Timezone struct {
	ZoneName         string `json:"zone_name" yaml:"zone_name"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds" yaml:"utc_offset_seconds"`
	CountryName      string `json:"country_name" yaml:"country_name"`
}

// NotFoundLocation returns the not-found sentinel for query. Latitude and
// longitude are both zero; Found is false and is the authoritative signal.
func NotFoundLocation(query string) GeoLocation {
	return GeoLocation{
		FormattedName: fmt.Sprintf("Location not found: %q. Try a different city.", query),
	}
}

// IsNotFound reports whether g is the not-found sentinel.
func (g GeoLocation) IsNotFound() bool {
	return !g.Found
}

// HasTimezone reports whether a timezone was attached by the data source.
func (g GeoLocation) HasTimezone() bool {
	return g.Timezone != nil
}

// WithOffsetAt returns a copy of g whose timezone offset is re-evaluated for
// the given local wall-clock time. Locations without a timezone are returned
// unchanged.
func (g GeoLocation) WithOffsetAt(year int, month time.Month, day, hour, minute int) GeoLocation {
	if g.Timezone == nil {
		return g
	}
	tz := *g.Timezone
	tz.UTCOffsetSeconds = tz.OffsetAt(year, month, day, hour, minute)
	g.Timezone = &tz
	return g
}

// OffsetAt returns the zone's UTC offset in effect at the given local
// wall-clock time, honoring historic DST rules. When the zone name is empty or
// unknown to the tz database the stored offset is returned.
func (tz Timezone) OffsetAt(year int, month time.Month, day, hour, minute int) int {
	if tz.ZoneName == "" {
		return tz.UTCOffsetSeconds
	}
	loc, err := time.LoadLocation(tz.ZoneName)
	if err != nil {
		return tz.UTCOffsetSeconds
	}
	_, offset := time.Date(year, month, day, hour, minute, 0, 0, loc).Zone()
	return offset
}
