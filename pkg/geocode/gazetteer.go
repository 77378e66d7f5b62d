package geocode

import (
	"context"
	_ "embed"
	"os"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/natal-cli/internal/model"
)

//go:embed gazetteer.yaml
var embeddedGazetteer []byte

// Place is one gazetteer entry.
type Place struct {
	Key       string  `yaml:"key" validate:"required"`
	Name      string  `yaml:"name"` // defaults to the title-cased key
	Latitude  float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `yaml:"lon" validate:"gte=-180,lte=180"`
	Zone      string  `yaml:"zone" validate:"omitempty,timezone"`
	Country   string  `yaml:"country"`
}

type gazetteerFile struct {
	Places []Place `yaml:"places" validate:"dive"`
}

var (
	placeValidator = validator.New()
	titleCaser     = cases.Title(language.English)
)

// GazetteerProvider matches queries against an ordered place table. Entries
// from an optional override file are tried before the built-in ones.
type GazetteerProvider struct {
	mu       sync.RWMutex
	builtin  []Place
	override []Place
}

// NewGazetteerProvider loads the built-in table and, when overridePath is
// set, the override file.
func NewGazetteerProvider(overridePath string) (*GazetteerProvider, error) {
	builtin, err := parseGazetteer(embeddedGazetteer)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: built-in gazetteer")
	}
	g := &GazetteerProvider{builtin: builtin}
	if overridePath != "" {
		if err := g.Reload(overridePath); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Reload replaces the override entries with the contents of path. The
// previous entries stay in place when the file cannot be read or parsed.
func (g *GazetteerProvider) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "geocode: read gazetteer %s", path)
	}
	places, err := parseGazetteer(data)
	if err != nil {
		return eris.Wrapf(err, "geocode: gazetteer %s", path)
	}

	g.mu.Lock()
	g.override = places
	g.mu.Unlock()

	zap.L().Info("geocode: gazetteer overrides loaded",
		zap.String("path", path),
		zap.Int("places", len(places)),
	)
	return nil
}

// Places returns the table in match order.
func (g *GazetteerProvider) Places() []Place {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Place, 0, len(g.override)+len(g.builtin))
	out = append(out, g.override...)
	return append(out, g.builtin...)
}

// Name implements Provider.
func (g *GazetteerProvider) Name() string { return "gazetteer" }

// Available implements Provider.
func (g *GazetteerProvider) Available() bool { return true }

// Local marks the gazetteer as in-process, so the resolver consults it
// before the location cache.
func (g *GazetteerProvider) Local() bool { return true }

// Lookup implements Provider. Matching is, in order: the whole query equals
// a key; the first comma-separated component equals a key; the first
// component and a key contain one another. The first entry in table order
// wins each step, so an ambiguous substring resolves to the earlier entry.
func (g *GazetteerProvider) Lookup(_ context.Context, q Query) (*Match, error) {
	p, ok := matchPlace(g.Places(), q)
	if !ok {
		return nil, nil
	}
	return &Match{
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		FormattedName: p.Name,
		ZoneName:      p.Zone,
		CountryName:   p.Country,
	}, nil
}

// Location returns p as a found GeoLocation with its zone offset
// evaluated at t.
func (p Place) Location(t time.Time) model.GeoLocation {
	loc := model.GeoLocation{
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		FormattedName: p.Name,
		Found:         true,
		Source:        "gazetteer",
	}
	if p.Zone != "" {
		loc.Timezone = &model.Timezone{
			ZoneName:         p.Zone,
			UTCOffsetSeconds: offsetAt(p.Zone, 0, t),
			CountryName:      p.Country,
		}
	}
	return loc
}

func matchPlace(places []Place, q Query) (Place, bool) {
	if q.Empty() {
		return Place{}, false
	}
	for _, p := range places {
		if p.Key == q.Normalized {
			return p, true
		}
	}
	if q.HasComma && q.First != "" {
		for _, p := range places {
			if p.Key == q.First {
				return p, true
			}
		}
	}
	if q.First == "" {
		return Place{}, false
	}
	for _, p := range places {
		if strings.Contains(q.First, p.Key) || strings.Contains(p.Key, q.First) {
			return p, true
		}
	}
	return Place{}, false
}

func parseGazetteer(data []byte) ([]Place, error) {
	var f gazetteerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "parse")
	}
	if err := placeValidator.Struct(f); err != nil {
		return nil, eris.Wrap(err, "validate")
	}
	for i := range f.Places {
		f.Places[i].Key = Normalize(f.Places[i].Key)
		if f.Places[i].Key == "" {
			return nil, eris.Errorf("place %d has a blank key", i)
		}
		if f.Places[i].Name == "" {
			f.Places[i].Name = titleCaser.String(f.Places[i].Key)
		}
	}
	return f.Places, nil
}
