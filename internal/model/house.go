package model

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// HouseSystem is a one-letter house system code.
type HouseSystem string

const (
	Placidus      HouseSystem = "P"
	Koch          HouseSystem = "K"
	Porphyry      HouseSystem = "O"
	Regiomontanus HouseSystem = "R"
	Campanus      HouseSystem = "C"
	EqualHouses   HouseSystem = "E"
	WholeSign     HouseSystem = "W"
)

var houseSystemNames = map[HouseSystem]string{
	Placidus:      "Placidus",
	Koch:          "Koch",
	Porphyry:      "Porphyry",
	Regiomontanus: "Regiomontanus",
	Campanus:      "Campanus",
	EqualHouses:   "Equal",
	WholeSign:     "Whole Sign",
}

// Name returns the display name of the house system.
func (h HouseSystem) Name() string {
	if n, ok := houseSystemNames[h]; ok {
		return n
	}
	return string(h)
}

// ParseHouseSystem accepts a one-letter code in either case. An empty string
// selects Placidus.
func ParseHouseSystem(s string) (HouseSystem, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return Placidus, nil
	}
	h := HouseSystem(code)
	if _, ok := houseSystemNames[h]; !ok {
		return "", eris.Errorf("model: unknown house system %q", s)
	}
	return h, nil
}

// HouseCount is the number of houses in every chart.
const HouseCount = 12

// HouseCusp is the starting longitude of one house.
type HouseCusp struct {
	House     int     `json:"house"` // 1..12
	Longitude float64 `json:"longitude"`
}

// NormalizeDegrees maps any angle onto [0,360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// ForwardArc is the counter-clockwise distance from a to b in [0,360).
func ForwardArc(a, b float64) float64 {
	return NormalizeDegrees(b - a)
}

// HouseOf returns the house (1..12) containing longitude for ordered cusps.
// It returns 0 when cusps is not a full set.
func HouseOf(longitude float64, cusps []HouseCusp) int {
	if len(cusps) != HouseCount {
		return 0
	}
	for i := range cusps {
		next := cusps[(i+1)%HouseCount]
		if ForwardArc(cusps[i].Longitude, longitude) < ForwardArc(cusps[i].Longitude, next.Longitude) {
			return cusps[i].House
		}
	}
	return 0
}
