package ephemeris

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/instant"
	"github.com/sells-group/natal-cli/internal/model"
)

// Observer is notified of the layer that produced each result.
type Observer interface {
	LayerUsed(layer string)
	LayerFailed(layer string)
}

// Chain tries layers in order and returns the first result that validates.
type Chain struct {
	layers   []Layer
	observer Observer
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithObserver reports layer usage to o.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) { c.observer = o }
}

// NewChain creates a Chain over layers. A synthetic layer is appended when
// the last layer is not already synthetic, so Compute always succeeds.
func NewChain(layers []Layer, opts ...ChainOption) *Chain {
	ls := make([]Layer, 0, len(layers)+1)
	for _, l := range layers {
		if l != nil {
			ls = append(ls, l)
		}
	}
	if len(ls) == 0 || ls[len(ls)-1].Name() != LayerSynthetic {
		ls = append(ls, NewSyntheticLayer())
	}
	c := &Chain{layers: ls}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Layers returns the layer names in the order they are tried.
func (c *Chain) Layers() []string {
	names := make([]string, len(c.layers))
	for i, l := range c.layers {
		names[i] = l.Name()
	}
	return names
}

// Members returns the layers in the order they are tried.
func (c *Chain) Members() []Layer {
	return append([]Layer(nil), c.layers...)
}

// NewRequest builds a Request for an instant and observer location.
func NewRequest(inst instant.Instant, geo model.GeoLocation, hs model.HouseSystem, bodies []model.Body) Request {
	if len(bodies) == 0 {
		bodies = model.DefaultBodies
	}
	return Request{
		JulianDay:   inst.JulianDay,
		UTC:         inst.UTC,
		Latitude:    geo.Latitude,
		Longitude:   geo.Longitude,
		HouseSystem: hs,
		Bodies:      bodies,
	}
}

// Positions computes positions for inst at geo. It never fails.
func (c *Chain) Positions(ctx context.Context, inst instant.Instant, geo model.GeoLocation, hs model.HouseSystem, bodies []model.Body) *Result {
	return c.Compute(ctx, NewRequest(inst, geo, hs, bodies))
}

// Compute runs req through the layers. A layer that errors, panics or
// returns an invalid result is recorded as an attempt and the next layer is
// tried with the same request. Partial results are discarded.
func (c *Chain) Compute(ctx context.Context, req Request) *Result {
	var attempts []Attempt
	for _, l := range c.layers {
		res, err := c.try(ctx, l, req)
		if err == nil {
			err = Validate(req, res)
		}
		if err != nil {
			zap.L().Warn("ephemeris: layer failed, degrading",
				zap.String("layer", l.Name()),
				zap.Float64("jd", req.JulianDay),
				zap.Error(err),
			)
			attempts = append(attempts, Attempt{Layer: l.Name(), Error: err.Error()})
			if c.observer != nil {
				c.observer.LayerFailed(l.Name())
			}
			continue
		}
		res.Layer = l.Name()
		res.Attempts = attempts
		if c.observer != nil {
			c.observer.LayerUsed(res.Layer)
		}
		return res
	}

	// Only reachable when the synthetic layer itself was rejected.
	res := synthesize(req)
	res.Layer = LayerSynthetic
	res.Attempts = attempts
	if c.observer != nil {
		c.observer.LayerUsed(res.Layer)
	}
	return res
}

func (c *Chain) try(ctx context.Context, l Layer, req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = eris.Errorf("ephemeris: layer %s panicked: %s", l.Name(), fmt.Sprint(r))
		}
	}()
	res, err = l.Compute(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "ephemeris: layer %s", l.Name())
	}
	return res, nil
}
