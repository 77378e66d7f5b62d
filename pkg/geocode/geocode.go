// Package geocode resolves free-text birth places to coordinates and
// timezones through a cascade of providers: a built-in gazetteer and,
// optionally, the Google Geocoding and Time Zone APIs.
package geocode

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyInput is returned when the place name is empty or whitespace.
var ErrEmptyInput = eris.New("geocode: empty place name")

// Query is a place name prepared for matching.
type Query struct {
	Raw        string // as entered
	Normalized string // trimmed, lower-cased, accents folded, spaces collapsed
	First      string // first comma-separated component of Normalized
	HasComma   bool
}

// NewQuery normalizes raw for matching.
func NewQuery(raw string) Query {
	n := Normalize(raw)
	first, _, found := strings.Cut(n, ",")
	return Query{
		Raw:        raw,
		Normalized: n,
		First:      strings.TrimSpace(first),
		HasComma:   found,
	}
}

// Empty reports whether the query has no content.
func (q Query) Empty() bool {
	return q.Normalized == ""
}

// Normalize lower-cases s, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Match is one provider's answer for a query.
type Match struct {
	Latitude      float64
	Longitude     float64
	FormattedName string
	ZoneName      string // IANA zone; empty when the source has none
	OffsetSeconds int    // source-reported offset, used when ZoneName is unknown locally
	CountryName   string
}

// HasZone reports whether the source supplied a timezone.
func (m *Match) HasZone() bool {
	return m.ZoneName != ""
}

// Provider is a single place lookup backend. Lookup returns (nil, nil) when
// the backend has no match.
type Provider interface {
	Name() string
	Available() bool
	Lookup(ctx context.Context, q Query) (*Match, error)
}
