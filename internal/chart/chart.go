// Package chart assembles birth charts from resolved locations, normalized
// instants and ephemeris results.
package chart

import (
	"time"

	"github.com/samber/lo"

	"github.com/sells-group/natal-cli/internal/aspect"
	"github.com/sells-group/natal-cli/internal/ephemeris"
	"github.com/sells-group/natal-cli/internal/instant"
	"github.com/sells-group/natal-cli/internal/model"
	"github.com/sells-group/natal-cli/internal/zodiac"
)

// Sect is whether the Sun was above or below the horizon at birth.
type Sect string

const (
	SectDay   Sect = "day"
	SectNight Sect = "night"
)

// Chart is a complete birth chart. It is never modified after Assemble
// returns it.
type Chart struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	BirthDate   string            `json:"birth_date" yaml:"birth_date"`
	BirthTime   string            `json:"birth_time" yaml:"birth_time"`
	Location    model.GeoLocation `json:"location" yaml:"location"`
	Instant     instant.Instant   `json:"instant" yaml:"instant"`
	HouseSystem model.HouseSystem `json:"house_system" yaml:"house_system"`

	Placements []Placement     `json:"placements" yaml:"placements"`
	Houses     []House         `json:"houses" yaml:"houses"`
	Aspects    []aspect.Aspect `json:"aspects" yaml:"aspects"`
	Balance    Balance         `json:"balance" yaml:"balance"`
	Sect       Sect            `json:"sect,omitempty" yaml:"sect,omitempty"`
	SunTimes   *SunTimes       `json:"sun_times,omitempty" yaml:"sun_times,omitempty"`

	// Layer is the ephemeris layer that produced every position.
	Layer    string              `json:"layer" yaml:"layer"`
	Degraded bool                `json:"degraded" yaml:"degraded"`
	Attempts []ephemeris.Attempt `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	// HousesFilled is set when the cusps came from the equal-house fallback
	// because the layer returned an incomplete set.
	HousesFilled bool `json:"houses_filled,omitempty" yaml:"houses_filled,omitempty"`
	// Approximate is set when the offset was estimated from longitude or
	// positions or houses came from a fallback.
	Approximate bool `json:"approximate" yaml:"approximate"`

	CalculatedAt time.Time `json:"calculated_at" yaml:"calculated_at"`
}

// Placement is one body's longitude with its derived sign and house.
type Placement struct {
	Body         model.Body  `json:"body" yaml:"body"`
	Name         string      `json:"name" yaml:"name"`
	Symbol       string      `json:"symbol" yaml:"symbol"`
	Longitude    float64     `json:"longitude" yaml:"longitude"`
	Speed        float64     `json:"speed" yaml:"speed"`
	Retrograde   bool        `json:"retrograde" yaml:"retrograde"`
	Sign         zodiac.Sign `json:"sign" yaml:"sign"`
	DegreeInSign float64     `json:"degree_in_sign" yaml:"degree_in_sign"`
	House        int         `json:"house" yaml:"house"`
}

// Position renders the placement as "<Sign> <degree>°".
func (p Placement) Position() string {
	return zodiac.Position{Sign: p.Sign, DegreeInSign: p.DegreeInSign}.String()
}

// House is one house cusp with its sign.
type House struct {
	Number       int         `json:"number" yaml:"number"`
	Cusp         float64     `json:"cusp" yaml:"cusp"`
	Sign         zodiac.Sign `json:"sign" yaml:"sign"`
	DegreeInSign float64     `json:"degree_in_sign" yaml:"degree_in_sign"`
}

// Balance counts planets by element and modality.
type Balance struct {
	Elements   map[zodiac.Element]int  `json:"elements" yaml:"elements"`
	Modalities map[zodiac.Modality]int `json:"modalities" yaml:"modalities"`
	// Dominant element and modality; empty on a tie for first place.
	DominantElement  zodiac.Element  `json:"dominant_element,omitempty" yaml:"dominant_element,omitempty"`
	DominantModality zodiac.Modality `json:"dominant_modality,omitempty" yaml:"dominant_modality,omitempty"`
}

// SunTimes holds sunrise and sunset on the local birth date, in UTC.
type SunTimes struct {
	Sunrise time.Time `json:"sunrise" yaml:"sunrise"`
	Sunset  time.Time `json:"sunset" yaml:"sunset"`
}

// Placement returns the placement of b.
func (c *Chart) Placement(b model.Body) (Placement, bool) {
	return lo.Find(c.Placements, func(p Placement) bool { return p.Body == b })
}

// Input is everything Assemble packages into a chart.
type Input struct {
	ID          string
	Name        string
	BirthDate   string
	BirthTime   string
	Location    model.GeoLocation
	Instant     instant.Instant
	HouseSystem model.HouseSystem
	Positions   *ephemeris.Result
	Aspects     []aspect.Aspect
	SunTimes    *SunTimes
	Now         time.Time
}

// Assemble packages computed positions into a Chart. It does not recompute
// positions. Every body gets a sign and house, the Ascendant and Midheaven
// are added as bodies, a short house set is replaced by the equal-house
// fallback so all twelve houses are present, and Aspects is never nil.
func Assemble(in Input) *Chart {
	res := in.Positions
	if res == nil {
		res = &ephemeris.Result{}
	}

	cusps, filled := completeHouses(res, in.Instant.UTC)

	positions := make([]model.BodyPosition, 0, len(res.Bodies)+2)
	positions = append(positions, lo.Filter(res.Bodies, func(p model.BodyPosition, _ int) bool {
		return !p.Body.IsAngle()
	})...)
	positions = append(positions,
		model.BodyPosition{Body: model.Ascendant, Longitude: model.NormalizeDegrees(res.Ascendant)},
		model.BodyPosition{Body: model.Midheaven, Longitude: model.NormalizeDegrees(res.Midheaven)},
	)

	placements := lo.Map(positions, func(p model.BodyPosition, _ int) Placement {
		z := zodiac.Classify(p.Longitude)
		return Placement{
			Body:         p.Body,
			Name:         p.Body.Name(),
			Symbol:       p.Body.Symbol(),
			Longitude:    model.NormalizeDegrees(p.Longitude),
			Speed:        p.Speed,
			Retrograde:   p.Retrograde(),
			Sign:         z.Sign,
			DegreeInSign: z.DegreeInSign,
			House:        model.HouseOf(p.Longitude, cusps),
		}
	})

	houses := lo.Map(cusps, func(h model.HouseCusp, _ int) House {
		z := zodiac.Classify(h.Longitude)
		return House{Number: h.House, Cusp: h.Longitude, Sign: z.Sign, DegreeInSign: z.DegreeInSign}
	})

	aspects := in.Aspects
	if aspects == nil {
		aspects = []aspect.Aspect{}
	}

	c := &Chart{
		ID:           in.ID,
		Name:         in.Name,
		BirthDate:    in.BirthDate,
		BirthTime:    in.BirthTime,
		Location:     in.Location,
		Instant:      in.Instant,
		HouseSystem:  in.HouseSystem,
		Placements:   placements,
		Houses:       houses,
		Aspects:      aspects,
		Balance:      balanceOf(placements),
		SunTimes:     in.SunTimes,
		Layer:        res.Layer,
		Degraded:     res.Degraded(),
		Attempts:     res.Attempts,
		HousesFilled: filled,
		Approximate:  in.Instant.Approximate() || res.Approximate() || filled,
		CalculatedAt: in.Now.UTC(),
	}
	c.Sect = sectOf(c)
	return c
}

// completeHouses returns the layer's cusps ordered by house number, or the
// equal-house fallback anchored at the layer's ascendant when any of the
// twelve is missing.
func completeHouses(res *ephemeris.Result, utc time.Time) ([]model.HouseCusp, bool) {
	byNumber := lo.SliceToMap(res.Houses, func(h model.HouseCusp) (int, model.HouseCusp) {
		return h.House, h
	})
	cusps := make([]model.HouseCusp, 0, model.HouseCount)
	for n := 1; n <= model.HouseCount; n++ {
		h, ok := byNumber[n]
		if !ok {
			return ephemeris.FallbackHouses(model.NormalizeDegrees(res.Ascendant), utc), true
		}
		cusps = append(cusps, h)
	}
	return cusps, false
}

func balanceOf(placements []Placement) Balance {
	planets := lo.Filter(placements, func(p Placement, _ int) bool {
		return lo.Contains(model.Planets, p.Body)
	})

	b := Balance{
		Elements:   make(map[zodiac.Element]int, 4),
		Modalities: make(map[zodiac.Modality]int, 3),
	}
	for _, e := range []zodiac.Element{zodiac.Fire, zodiac.Earth, zodiac.Air, zodiac.Water} {
		b.Elements[e] = 0
	}
	for _, m := range []zodiac.Modality{zodiac.Cardinal, zodiac.Fixed, zodiac.Mutable} {
		b.Modalities[m] = 0
	}
	for _, p := range planets {
		b.Elements[p.Sign.Element()]++
		b.Modalities[p.Sign.Modality()]++
	}
	b.DominantElement = dominant(b.Elements)
	b.DominantModality = dominant(b.Modalities)
	return b
}

func dominant[K comparable](counts map[K]int) K {
	var best K
	top, ties := 0, 0
	for k, n := range counts {
		switch {
		case n > top:
			best, top, ties = k, n, 0
		case n == top:
			ties++
		}
	}
	if top == 0 || ties > 0 {
		var zero K
		return zero
	}
	return best
}

// sectOf places the Sun against the horizon: the half of the ecliptic from
// the Ascendant to the Descendant lies below it.
func sectOf(c *Chart) Sect {
	sun, ok := c.Placement(model.Sun)
	if !ok {
		return ""
	}
	asc, _ := c.Placement(model.Ascendant)
	if model.ForwardArc(asc.Longitude, sun.Longitude) < 180 {
		return SectNight
	}
	return SectDay
}
