// Package aspect detects angular relationships between chart bodies.
package aspect

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/natal-cli/internal/model"
)

// Definition is one aspect with its exact angle and maximum orb.
type Definition struct {
	Name   string  `json:"name"`
	Angle  float64 `json:"angle"`
	Orb    float64 `json:"orb"`
	Symbol string  `json:"symbol"`
}

// Strength classifies how tight an aspect is.
type Strength string

const (
	Strong   Strength = "Strong"
	Moderate Strength = "Moderate"
)

// StrongOrb is the orb below which an aspect is Strong.
const StrongOrb = 3.0

// MajorAspects is the default table. Order is priority: the first definition
// within orb wins.
var MajorAspects = []Definition{
	{Name: "Conjunction", Angle: 0, Orb: 8, Symbol: "☌"},
	{Name: "Opposition", Angle: 180, Orb: 8, Symbol: "☍"},
	{Name: "Trine", Angle: 120, Orb: 8, Symbol: "△"},
	{Name: "Square", Angle: 90, Orb: 8, Symbol: "□"},
	{Name: "Sextile", Angle: 60, Orb: 6, Symbol: "⚹"},
}

// ExtendedAspects adds the minor aspects after the major ones.
var ExtendedAspects = append(append([]Definition{}, MajorAspects...),
	Definition{Name: "Quincunx", Angle: 150, Orb: 5, Symbol: "⚻"},
	Definition{Name: "Semi-Square", Angle: 45, Orb: 4, Symbol: "∠"},
	Definition{Name: "Semi-Sextile", Angle: 30, Orb: 4, Symbol: "⚺"},
)

// Table returns the named aspect table: "major" or "extended".
func Table(name string) ([]Definition, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "major":
		return MajorAspects, nil
	case "extended", "all":
		return ExtendedAspects, nil
	default:
		return nil, eris.Errorf("aspect: unknown aspect set %q", name)
	}
}

// Aspect is a detected relationship between two bodies.
type Aspect struct {
	BodyA      model.Body `json:"body_a"`
	BodyB      model.Body `json:"body_b"`
	Name       string     `json:"aspect"`
	Symbol     string     `json:"symbol"`
	ExactAngle float64    `json:"exact_angle"`
	Separation float64    `json:"separation"`
	Orb        float64    `json:"orb"`
	Strength   Strength   `json:"strength"`
}

// Separation is the shortest arc between two longitudes, in [0,180].
func Separation(a, b float64) float64 {
	diff := math.Abs(model.NormalizeDegrees(a) - model.NormalizeDegrees(b))
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// Match returns the first definition whose orb contains separation, with the
// computed orb.
func Match(separation float64, table []Definition) (Definition, float64, bool) {
	for _, d := range table {
		orb := math.Abs(separation - d.Angle)
		if orb <= d.Orb {
			return d, orb, true
		}
	}
	return Definition{}, 0, false
}

// StrengthOf classifies an orb.
func StrengthOf(orb float64) Strength {
	if orb < StrongOrb {
		return Strong
	}
	return Moderate
}

// Detector finds aspects using a fixed table.
type Detector struct {
	table []Definition
}

// NewDetector creates a Detector. An empty table selects MajorAspects.
func NewDetector(table []Definition) *Detector {
	if len(table) == 0 {
		table = MajorAspects
	}
	return &Detector{table: table}
}

// Table returns the detector's aspect definitions.
func (d *Detector) Table() []Definition {
	return d.table
}

// Detect considers every unordered pair of distinct bodies once, in input
// order, and assigns at most one aspect per pair. The result is never nil.
func (d *Detector) Detect(bodies []model.BodyPosition) []Aspect {
	aspects := make([]Aspect, 0)
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			if a.Body == b.Body {
				continue
			}
			sep := Separation(a.Longitude, b.Longitude)
			def, orb, ok := Match(sep, d.table)
			if !ok {
				continue
			}
			aspects = append(aspects, Aspect{
				BodyA:      a.Body,
				BodyB:      b.Body,
				Name:       def.Name,
				Symbol:     def.Symbol,
				ExactAngle: def.Angle,
				Separation: sep,
				Orb:        orb,
				Strength:   StrengthOf(orb),
			})
		}
	}
	return aspects
}

// MaxOrb returns the configured orb for the named aspect.
func (d *Detector) MaxOrb(name string) (float64, bool) {
	for _, def := range d.table {
		if def.Name == name {
			return def.Orb, true
		}
	}
	return 0, false
}
