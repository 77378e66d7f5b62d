// Package zodiac classifies ecliptic longitudes into signs.
package zodiac

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/natal-cli/internal/model"
)

// Sign is one of the twelve tropical signs, Aries (0) through Pisces (11).
type Sign int

const (
	Aries Sign = iota
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

// Element of a sign.
type Element string

const (
	Fire  Element = "fire"
	Earth Element = "earth"
	Air   Element = "air"
	Water Element = "water"
)

// Modality of a sign.
type Modality string

const (
	Cardinal Modality = "cardinal"
	Fixed    Modality = "fixed"
	Mutable  Modality = "mutable"
)

var signNames = [12]string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

var signSymbols = [12]string{"♈", "♉", "♊", "♋", "♌", "♍", "♎", "♏", "♐", "♑", "♒", "♓"}

var elements = [4]Element{Fire, Earth, Air, Water}

var modalities = [3]Modality{Cardinal, Fixed, Mutable}

func (s Sign) String() string { return signNames[s.index()] }

// Symbol returns the sign glyph.
func (s Sign) Symbol() string { return signSymbols[s.index()] }

// Element follows the fire, earth, air, water cycle from Aries.
func (s Sign) Element() Element { return elements[s.index()%4] }

// Modality follows the cardinal, fixed, mutable cycle from Aries.
func (s Sign) Modality() Modality { return modalities[s.index()%3] }

// MarshalText encodes the sign by name.
func (s Sign) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a sign name.
func (s *Sign) UnmarshalText(text []byte) error {
	for i, name := range signNames {
		if strings.EqualFold(name, string(text)) {
			*s = Sign(i)
			return nil
		}
	}
	return eris.Errorf("zodiac: unknown sign %q", string(text))
}

func (s Sign) index() int {
	return ((int(s) % 12) + 12) % 12
}

// Signs returns all twelve signs in zodiacal order.
func Signs() []Sign {
	out := make([]Sign, 12)
	for i := range out {
		out[i] = Sign(i)
	}
	return out
}

// Position is a longitude expressed as sign and degree within sign.
type Position struct {
	Sign         Sign    `json:"sign"`
	DegreeInSign float64 `json:"degree_in_sign"` // [0,30)
}

// Classify maps any longitude onto its sign and degree within the sign.
func Classify(longitude float64) Position {
	lon := model.NormalizeDegrees(longitude)
	idx := int(math.Floor(lon/30)) % 12
	deg := math.Mod(lon, 30)
	if deg >= 30 || deg < 0 {
		deg = 0
	}
	return Position{Sign: Sign(idx), DegreeInSign: deg}
}

// Longitude returns the absolute ecliptic longitude of p.
func (p Position) Longitude() float64 {
	return float64(p.Sign)*30 + p.DegreeInSign
}

// String renders "Libra 15.23°". The degree is truncated, never rounded up
// to 30.00.
func (p Position) String() string {
	deg := min(math.Floor(p.DegreeInSign*100+1e-7)/100, 29.99)
	return fmt.Sprintf("%s %.2f°", p.Sign, deg)
}

// DMS renders degrees and arc-minutes, e.g. "15°14′ Libra".
func (p Position) DMS() string {
	deg := math.Floor(p.DegreeInSign)
	minutes := math.Floor((p.DegreeInSign - deg) * 60)
	return fmt.Sprintf("%d°%02d′ %s", int(deg), int(minutes), p.Sign)
}

// Format classifies longitude and renders it as "<Sign> <degree>°".
func Format(longitude float64) string {
	return Classify(longitude).String()
}
