// Package model holds the value types shared across the chart engine.
package model

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// Body identifies a tracked chart body or point.
type Body string

const (
	Sun       Body = "sun"
	Moon      Body = "moon"
	Mercury   Body = "mercury"
	Venus     Body = "venus"
	Mars      Body = "mars"
	Jupiter   Body = "jupiter"
	Saturn    Body = "saturn"
	Uranus    Body = "uranus"
	Neptune   Body = "neptune"
	Pluto     Body = "pluto"
	MeanNode  Body = "meanNode"
	TrueNode  Body = "trueNode"
	Lilith    Body = "lilith"
	Chiron    Body = "chiron"
	Ascendant Body = "ascendant"
	Midheaven Body = "midheaven"
)

// Planets lists the ten classical chart bodies, Sun through Pluto.
var Planets = []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto}

// Points lists the optional calculated points.
var Points = []Body{MeanNode, TrueNode, Lilith, Chiron}

// Angles lists the bodies derived from the house frame rather than an ephemeris.
var Angles = []Body{Ascendant, Midheaven}

// DefaultBodies is the body set requested when configuration names none.
var DefaultBodies = append(append([]Body{}, Planets...), MeanNode, TrueNode, Lilith, Chiron)

var bodyInfo = map[Body]struct {
	name   string
	symbol string
}{
	Sun:       {"Sun", "☉"},
	Moon:      {"Moon", "☽"},
	Mercury:   {"Mercury", "☿"},
	Venus:     {"Venus", "♀"},
	Mars:      {"Mars", "♂"},
	Jupiter:   {"Jupiter", "♃"},
	Saturn:    {"Saturn", "♄"},
	Uranus:    {"Uranus", "♅"},
	Neptune:   {"Neptune", "♆"},
	Pluto:     {"Pluto", "♇"},
	MeanNode:  {"Mean Node", "☊"},
	TrueNode:  {"True Node", "☊"},
	Lilith:    {"Lilith", "⚸"},
	Chiron:    {"Chiron", "⚷"},
	Ascendant: {"Ascendant", "AC"},
	Midheaven: {"Midheaven", "MC"},
}

// Name returns the display name of the body.
func (b Body) Name() string {
	if info, ok := bodyInfo[b]; ok {
		return info.name
	}
	return string(b)
}

// Symbol returns the astrological glyph of the body.
func (b Body) Symbol() string {
	return bodyInfo[b].symbol
}

// IsPlanet reports whether b is one of the ten Planets.
func (b Body) IsPlanet() bool {
	return slices.Contains(Planets, b)
}

// IsAngle reports whether b is the Ascendant or Midheaven.
func (b Body) IsAngle() bool {
	return b == Ascendant || b == Midheaven
}

// ParseBody maps a case-insensitive body id onto a Body.
func ParseBody(s string) (Body, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for b := range bodyInfo {
		if strings.ToLower(string(b)) == key {
			return b, nil
		}
	}
	return "", eris.Errorf("model: unknown body %q", s)
}

// ParseBodies parses a list of body ids, rejecting angles, which are always
// computed with the houses.
func ParseBodies(ids []string) ([]Body, error) {
	if len(ids) == 0 {
		return append([]Body{}, DefaultBodies...), nil
	}
	bodies := make([]Body, 0, len(ids))
	seen := make(map[Body]bool, len(ids))
	for _, id := range ids {
		b, err := ParseBody(id)
		if err != nil {
			return nil, err
		}
		if b.IsAngle() {
			return nil, eris.Errorf("model: %s is computed with the houses and cannot be requested", b)
		}
		if !seen[b] {
			seen[b] = true
			bodies = append(bodies, b)
		}
	}
	return bodies, nil
}

// BodyPosition is the ecliptic longitude of one body at one instant.
type BodyPosition struct {
	Body      Body    `json:"body"`
	Longitude float64 `json:"longitude"` // [0,360)
	Speed     float64 `json:"speed"`     // degrees per day
}

// Retrograde reports apparent backward motion. Angles never move retrograde.
func (p BodyPosition) Retrograde() bool {
	return !p.Body.IsAngle() && p.Speed < 0
}
