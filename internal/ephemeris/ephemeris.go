// Package ephemeris computes body longitudes, angles and house cusps through
// an ordered chain of interchangeable layers. A later layer is used only when
// every earlier one failed or returned a result that does not validate.
package ephemeris

import (
	"context"
	"time"

	"github.com/sells-group/natal-cli/internal/model"
)

// Layer names.
const (
	LayerVSOP87    = "vsop87"
	LayerAnalytic  = "analytic"
	LayerSynthetic = "synthetic"
)

// Request is one position query.
type Request struct {
	JulianDay   float64 // UT
	UTC         time.Time
	Latitude    float64
	Longitude   float64
	HouseSystem model.HouseSystem
	Bodies      []model.Body
}

// Result is a complete set of positions from a single layer. Results from
// different layers are never merged.
type Result struct {
	Bodies    []model.BodyPosition `json:"bodies"`
	Houses    []model.HouseCusp    `json:"houses"`
	Ascendant float64              `json:"ascendant"`
	Midheaven float64              `json:"midheaven"`
	Layer     string               `json:"layer"`
	Attempts  []Attempt            `json:"attempts,omitempty"`
}

// Attempt records a layer that was tried and rejected.
type Attempt struct {
	Layer string `json:"layer"`
	Error string `json:"error"`
}

// Degraded reports whether any earlier layer failed.
func (r *Result) Degraded() bool {
	return len(r.Attempts) > 0
}

// Approximate reports whether the positions came from the synthetic layer.
func (r *Result) Approximate() bool {
	return r.Layer == LayerSynthetic
}

// Position returns the longitude of b.
func (r *Result) Position(b model.Body) (model.BodyPosition, bool) {
	for _, p := range r.Bodies {
		if p.Body == b {
			return p, true
		}
	}
	return model.BodyPosition{}, false
}

// Layer is one strategy in the chain.
type Layer interface {
	Name() string
	Compute(ctx context.Context, req Request) (*Result, error)
}
