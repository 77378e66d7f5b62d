package ephemeris

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/natal-cli/internal/model"
)

// ErrInvalidResult marks a layer result that failed validation.
var ErrInvalidResult = eris.New("ephemeris: invalid result")

const arcTolerance = 1e-6

// Validate checks res against the strict result schema for req. A result is
// valid when every requested body appears exactly once with a finite
// longitude in [0,360), both angles are finite, and there are exactly twelve
// cusps numbered 1..12 that increase once around the circle.
func Validate(req Request, res *Result) error {
	if res == nil {
		return eris.Wrap(ErrInvalidResult, "nil result")
	}

	requested := make(map[model.Body]bool, len(req.Bodies))
	for _, b := range req.Bodies {
		requested[b] = true
	}
	seen := make(map[model.Body]bool, len(res.Bodies))
	for _, p := range res.Bodies {
		if !requested[p.Body] {
			return eris.Wrapf(ErrInvalidResult, "unexpected body %q", p.Body)
		}
		if seen[p.Body] {
			return eris.Wrapf(ErrInvalidResult, "duplicate body %q", p.Body)
		}
		seen[p.Body] = true
		if !validLongitude(p.Longitude) {
			return eris.Wrapf(ErrInvalidResult, "body %s longitude %v", p.Body, p.Longitude)
		}
		if math.IsNaN(p.Speed) || math.IsInf(p.Speed, 0) {
			return eris.Wrapf(ErrInvalidResult, "body %s speed %v", p.Body, p.Speed)
		}
	}
	for _, b := range req.Bodies {
		if !seen[b] {
			return eris.Wrapf(ErrInvalidResult, "missing body %q", b)
		}
	}

	if !validLongitude(res.Ascendant) {
		return eris.Wrapf(ErrInvalidResult, "ascendant %v", res.Ascendant)
	}
	if !validLongitude(res.Midheaven) {
		return eris.Wrapf(ErrInvalidResult, "midheaven %v", res.Midheaven)
	}

	return validateHouses(res.Houses)
}

func validateHouses(houses []model.HouseCusp) error {
	if len(houses) != model.HouseCount {
		return eris.Wrapf(ErrInvalidResult, "%d house cusps", len(houses))
	}
	total := 0.0
	for i, h := range houses {
		if h.House != i+1 {
			return eris.Wrapf(ErrInvalidResult, "cusp %d numbered %d", i+1, h.House)
		}
		if !validLongitude(h.Longitude) {
			return eris.Wrapf(ErrInvalidResult, "house %d cusp %v", h.House, h.Longitude)
		}
		arc := model.ForwardArc(h.Longitude, houses[(i+1)%model.HouseCount].Longitude)
		if arc <= 0 {
			return eris.Wrapf(ErrInvalidResult, "house %d has zero width", h.House)
		}
		total += arc
	}
	if math.Abs(total-360) > arcTolerance {
		return eris.Wrapf(ErrInvalidResult, "cusps span %.4f degrees, not one circle", total)
	}
	return nil
}

func validLongitude(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v < 360
}
