package geocode

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGazetteer(t *testing.T) *GazetteerProvider {
	t.Helper()
	g, err := NewGazetteerProvider("")
	require.NoError(t, err)
	return g
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Miami  ", "miami"},
		{"São Paulo", "sao paulo"},
		{"ZÜRICH", "zurich"},
		{"New   York,\tNY", "new york, ny"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestNewQuery(t *testing.T) {
	q := NewQuery("Miami, FL, USA")
	assert.Equal(t, "miami, fl, usa", q.Normalized)
	assert.Equal(t, "miami", q.First)
	assert.True(t, q.HasComma)
	assert.False(t, q.Empty())

	q = NewQuery("Tokyo")
	assert.Equal(t, "tokyo", q.First)
	assert.False(t, q.HasComma)

	assert.True(t, NewQuery(" \t ").Empty())
}

func TestGazetteer_BuiltinTable(t *testing.T) {
	g := newGazetteer(t)
	places := g.Places()
	require.NotEmpty(t, places)

	seen := map[string]bool{}
	for _, p := range places {
		assert.False(t, seen[p.Key], "duplicate key %s", p.Key)
		seen[p.Key] = true
		assert.NotEmpty(t, p.Zone, p.Key)
		assert.NotEmpty(t, p.Name, p.Key)
	}
}

func TestPlace_Location(t *testing.T) {
	p := Place{Key: "miami", Name: "Miami, Florida, USA", Latitude: 25.7617, Longitude: -80.1918, Zone: "America/New_York", Country: "United States"}

	winter := p.Location(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC))
	assert.True(t, winter.Found)
	assert.Equal(t, "gazetteer", winter.Source)
	require.NotNil(t, winter.Timezone)
	assert.Equal(t, -18000, winter.Timezone.UTCOffsetSeconds)

	summer := p.Location(time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, -14400, summer.Timezone.UTCOffsetSeconds)

	p.Zone = ""
	assert.Nil(t, p.Location(time.Now()).Timezone)
}

func TestGazetteer_Lookup(t *testing.T) {
	g := newGazetteer(t)

	tests := []struct {
		name    string
		query   string
		wantLat float64
		wantLon float64
		zone    string
	}{
		{"exact", "Miami", 25.7617, -80.1918, "America/New_York"},
		{"first component", "Miami, FL, USA", 25.7617, -80.1918, "America/New_York"},
		{"accent folded", "São Paulo, Brazil", -23.5505, -46.6333, "America/Sao_Paulo"},
		{"query inside key", "York", 40.7128, -74.0060, "America/New_York"},
		{"key inside query", "Greater London", 51.5074, -0.1278, "Europe/London"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := g.Lookup(context.Background(), NewQuery(tt.query))
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.InDelta(t, tt.wantLat, m.Latitude, 1e-9)
			assert.InDelta(t, tt.wantLon, m.Longitude, 1e-9)
			assert.Equal(t, tt.zone, m.ZoneName)
			assert.True(t, m.HasZone())
		})
	}
}

func TestGazetteer_AmbiguousSubstringTakesFirstEntry(t *testing.T) {
	g := newGazetteer(t)

	m, err := g.Lookup(context.Background(), NewQuery("San"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "San Antonio, Texas, USA", m.FormattedName)

	m, err = g.Lookup(context.Background(), NewQuery("New"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "New York, New York, USA", m.FormattedName)
}

func TestGazetteer_NoMatch(t *testing.T) {
	g := newGazetteer(t)

	for _, q := range []string{"Nonexistent Place XYZ", "Atlantis", ""} {
		m, err := g.Lookup(context.Background(), NewQuery(q))
		require.NoError(t, err)
		assert.Nil(t, m, q)
	}
}

func TestGazetteer_LeadingCommaSkipsSubstring(t *testing.T) {
	g := newGazetteer(t)

	m, err := g.Lookup(context.Background(), NewQuery(", nowhere"))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func writeOverride(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "places.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGazetteer_OverrideTriedFirst(t *testing.T) {
	path := writeOverride(t, `
places:
  - key: Miami
    name: "Miami, Oklahoma, USA"
    lat: 36.8745
    lon: -94.8775
    zone: America/Chicago
  - key: Springfield
    lat: 39.7817
    lon: -89.6501
    zone: America/Chicago
`)
	g, err := NewGazetteerProvider(path)
	require.NoError(t, err)

	m, err := g.Lookup(context.Background(), NewQuery("Miami"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Miami, Oklahoma, USA", m.FormattedName)

	m, err = g.Lookup(context.Background(), NewQuery("springfield"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Springfield", m.FormattedName)
}

func TestGazetteer_ReloadKeepsPreviousOnError(t *testing.T) {
	path := writeOverride(t, `
places:
  - key: atlantis
    lat: 0.5
    lon: -30
`)
	g, err := NewGazetteerProvider(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("places: [\n"), 0o600))
	assert.Error(t, g.Reload(path))

	m, err := g.Lookup(context.Background(), NewQuery("Atlantis"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.False(t, m.HasZone())
}

func TestGazetteer_InvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad latitude", "places:\n  - key: x\n    lat: 95\n    lon: 0\n"},
		{"bad longitude", "places:\n  - key: x\n    lat: 0\n    lon: 181\n"},
		{"unknown zone", "places:\n  - key: x\n    lat: 0\n    lon: 0\n    zone: Mars/Olympus\n"},
		{"missing key", "places:\n  - lat: 0\n    lon: 0\n"},
		{"blank key", "places:\n  - key: \"   \"\n    lat: 0\n    lon: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGazetteerProvider(writeOverride(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestGazetteer_MissingOverrideFile(t *testing.T) {
	_, err := NewGazetteerProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
