package chart

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/sells-group/natal-cli/internal/aspect"
	"github.com/sells-group/natal-cli/internal/model"
)

// Record is the flattened storage and display form of a Chart: every body as
// a "<Sign> <degree>°" string plus the raw houses and aspects.
type Record struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	BirthDate  string `json:"birth_date" yaml:"birth_date"`
	BirthTime  string `json:"birth_time" yaml:"birth_time"`
	BirthPlace string `json:"birth_place" yaml:"birth_place"`

	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Timezone  string  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	UTC       string  `json:"utc" yaml:"utc"`

	Sun       string `json:"sun,omitempty" yaml:"sun,omitempty"`
	Moon      string `json:"moon,omitempty" yaml:"moon,omitempty"`
	Mercury   string `json:"mercury,omitempty" yaml:"mercury,omitempty"`
	Venus     string `json:"venus,omitempty" yaml:"venus,omitempty"`
	Mars      string `json:"mars,omitempty" yaml:"mars,omitempty"`
	Jupiter   string `json:"jupiter,omitempty" yaml:"jupiter,omitempty"`
	Saturn    string `json:"saturn,omitempty" yaml:"saturn,omitempty"`
	Uranus    string `json:"uranus,omitempty" yaml:"uranus,omitempty"`
	Neptune   string `json:"neptune,omitempty" yaml:"neptune,omitempty"`
	Pluto     string `json:"pluto,omitempty" yaml:"pluto,omitempty"`
	Ascendant string `json:"ascendant" yaml:"ascendant"`
	Midheaven string `json:"midheaven" yaml:"midheaven"`
	// Points holds the nodes, Lilith and Chiron when they were computed.
	Points map[string]string `json:"points,omitempty" yaml:"points,omitempty"`

	Houses  map[string]RecordHouse `json:"houses" yaml:"houses"`
	Aspects []aspect.Aspect        `json:"aspects" yaml:"aspects"`

	HouseSystem string `json:"house_system" yaml:"house_system"`
	Layer       string `json:"layer" yaml:"layer"`
	Approximate bool   `json:"approximate" yaml:"approximate"`
}

// RecordHouse is one house in a Record.
type RecordHouse struct {
	Cusp   float64 `json:"cusp" yaml:"cusp"`
	Name   string  `json:"name" yaml:"name"`
	Symbol string  `json:"symbol" yaml:"symbol"`
	Degree float64 `json:"degree" yaml:"degree"`
}

// Record flattens c.
func (c *Chart) Record() Record {
	pos := lo.SliceToMap(c.Placements, func(p Placement) (model.Body, string) {
		return p.Body, p.Position()
	})

	r := Record{
		ID:          c.ID,
		Name:        c.Name,
		BirthDate:   c.BirthDate,
		BirthTime:   c.BirthTime,
		BirthPlace:  c.Location.FormattedName,
		Latitude:    c.Location.Latitude,
		Longitude:   c.Location.Longitude,
		UTC:         c.Instant.UTC.Format("2006-01-02T15:04:05Z"),
		Sun:         pos[model.Sun],
		Moon:        pos[model.Moon],
		Mercury:     pos[model.Mercury],
		Venus:       pos[model.Venus],
		Mars:        pos[model.Mars],
		Jupiter:     pos[model.Jupiter],
		Saturn:      pos[model.Saturn],
		Uranus:      pos[model.Uranus],
		Neptune:     pos[model.Neptune],
		Pluto:       pos[model.Pluto],
		Ascendant:   pos[model.Ascendant],
		Midheaven:   pos[model.Midheaven],
		Aspects:     c.Aspects,
		HouseSystem: c.HouseSystem.Name(),
		Layer:       c.Layer,
		Approximate: c.Approximate,
	}
	if c.Location.Timezone != nil {
		r.Timezone = c.Location.Timezone.ZoneName
	}

	points := lo.PickByKeys(pos, model.Points)
	if len(points) > 0 {
		r.Points = lo.MapKeys(points, func(_ string, b model.Body) string { return string(b) })
	}

	r.Houses = lo.SliceToMap(c.Houses, func(h House) (string, RecordHouse) {
		return fmt.Sprintf("house%d", h.Number), RecordHouse{
			Cusp:   h.Cusp,
			Name:   h.Sign.String(),
			Symbol: h.Sign.Symbol(),
			Degree: h.DegreeInSign,
		}
	})
	return r
}
