package chart

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nathan-osman/go-sunrise"
	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/aspect"
	"github.com/sells-group/natal-cli/internal/config"
	"github.com/sells-group/natal-cli/internal/ephemeris"
	"github.com/sells-group/natal-cli/internal/instant"
	"github.com/sells-group/natal-cli/internal/model"
)

var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = eris.New("chart: invalid request")
	// ErrLocationNotFound means the birth place did not resolve.
	ErrLocationNotFound = eris.New("chart: location not found")
	// ErrMissingTimezone means the birth place resolved without a timezone
	// and longitude estimates are not allowed.
	ErrMissingTimezone = eris.New("chart: location has no timezone")
)

// Request is one chart calculation. HouseSystem, AspectSet and Bodies
// override the engine defaults when set.
type Request struct {
	Name        string   `json:"name,omitempty" validate:"max=100"`
	BirthDate   string   `json:"birth_date"`
	BirthTime   string   `json:"birth_time"`
	BirthPlace  string   `json:"birth_place" validate:"max=200"`
	HouseSystem string   `json:"house_system,omitempty" validate:"omitempty,house_system"`
	AspectSet   string   `json:"aspect_set,omitempty" validate:"omitempty,oneof=major extended all"`
	Bodies      []string `json:"bodies,omitempty" validate:"max=14,dive,body"`
}

// Locator resolves birth places.
type Locator interface {
	Resolve(ctx context.Context, place string) (model.GeoLocation, error)
}

// PositionSource computes positions for an instant and place. It never fails.
type PositionSource interface {
	Positions(ctx context.Context, inst instant.Instant, geo model.GeoLocation, hs model.HouseSystem, bodies []model.Body) *ephemeris.Result
}

// Observer is notified of every calculation outcome.
type Observer interface {
	ChartCompleted(degraded, approximate bool)
	ChartFailed()
}

// Defaults are the settings used when a Request leaves them empty.
type Defaults struct {
	HouseSystem              model.HouseSystem
	AspectSet                string
	Bodies                   []model.Body
	AllowApproximateTimezone bool
}

// DefaultsFromConfig parses the chart section of the configuration.
func DefaultsFromConfig(cfg config.ChartConfig) (Defaults, error) {
	hs, err := model.ParseHouseSystem(cfg.HouseSystem)
	if err != nil {
		return Defaults{}, eris.Wrap(err, "chart: house system")
	}
	if _, err := aspect.Table(cfg.AspectSet); err != nil {
		return Defaults{}, eris.Wrap(err, "chart: aspect set")
	}
	bodies, err := model.ParseBodies(cfg.Bodies)
	if err != nil {
		return Defaults{}, eris.Wrap(err, "chart: bodies")
	}
	return Defaults{
		HouseSystem:              hs,
		AspectSet:                cfg.AspectSet,
		Bodies:                   bodies,
		AllowApproximateTimezone: cfg.AllowApproximateTimezone,
	}, nil
}

// Engine runs the full calculation: resolve the place, normalize the time,
// compute positions, detect aspects and assemble the chart. It is safe for
// concurrent use.
type Engine struct {
	locator   Locator
	positions PositionSource
	defaults  Defaults
	observer  Observer
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaults sets the request defaults.
func WithDefaults(d Defaults) Option {
	return func(e *Engine) { e.defaults = d }
}

// WithObserver reports calculation outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock sets the time source for CalculatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
func NewEngine(locator Locator, positions PositionSource, opts ...Option) *Engine {
	e := &Engine{
		locator:   locator,
		positions: positions,
		defaults: Defaults{
			HouseSystem:              model.Placidus,
			AspectSet:                "major",
			Bodies:                   model.DefaultBodies,
			AllowApproximateTimezone: true,
		},
		validate: newValidator(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Calculate computes the chart for req. A place that does not resolve
// returns ErrLocationNotFound; ephemeris failures degrade instead of
// failing. No partial chart is returned with an error.
func (e *Engine) Calculate(ctx context.Context, req Request) (c *Chart, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("chart: calculation panicked", zap.Any("panic", r), zap.Stack("stack"))
			c, err = nil, eris.Errorf("chart: internal error: %v", r)
		}
		if e.observer == nil {
			return
		}
		if err != nil {
			e.observer.ChartFailed()
		} else {
			e.observer.ChartCompleted(c.Degraded, c.Approximate)
		}
	}()

	if err := e.validateRequest(req); err != nil {
		return nil, err
	}
	hs, table, bodies, err := e.settings(req)
	if err != nil {
		return nil, err
	}

	local, err := instant.ParseLocal(req.BirthDate, req.BirthTime)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "chart: calculate")
	}
	geo, err := e.locator.Resolve(ctx, req.BirthPlace)
	if err != nil {
		return nil, eris.Wrap(err, "chart: resolve location")
	}
	if !geo.Found {
		return nil, eris.Wrap(ErrLocationNotFound, geo.FormattedName)
	}
	if !geo.HasTimezone() && !e.defaults.AllowApproximateTimezone {
		return nil, eris.Wrapf(ErrMissingTimezone, "chart: %s", geo.FormattedName)
	}

	// The resolved offset is for the lookup time; birth dates need the rule
	// in force then.
	geo = geo.WithOffsetAt(local.Year, local.Month, local.Day, local.Hour, local.Minute)
	inst, err := instant.NormalizeLocal(local, geo)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "chart: calculate")
	}
	res := e.positions.Positions(ctx, inst, geo, hs, bodies)
	if res.Degraded() {
		zap.L().Warn("chart: positions degraded",
			zap.String("layer", res.Layer),
			zap.Int("failed_layers", len(res.Attempts)),
		)
	}

	// Nodes, Lilith and Chiron are placed but take no part in aspects.
	planets := lo.Filter(res.Bodies, func(p model.BodyPosition, _ int) bool {
		return p.Body.IsPlanet()
	})
	aspects := aspect.NewDetector(table).Detect(planets)

	return Assemble(Input{
		ID:          e.newID(),
		Name:        req.Name,
		BirthDate:   req.BirthDate,
		BirthTime:   req.BirthTime,
		Location:    geo,
		Instant:     inst,
		HouseSystem: hs,
		Positions:   res,
		Aspects:     aspects,
		SunTimes:    sunTimes(geo, local),
		Now:         e.now(),
	}), nil
}

func (e *Engine) settings(req Request) (model.HouseSystem, []aspect.Definition, []model.Body, error) {
	hs := e.defaults.HouseSystem
	if req.HouseSystem != "" {
		parsed, err := model.ParseHouseSystem(req.HouseSystem)
		if err != nil {
			return "", nil, nil, eris.Wrap(ErrInvalidRequest, err.Error())
		}
		hs = parsed
	}

	setName := e.defaults.AspectSet
	if req.AspectSet != "" {
		setName = req.AspectSet
	}
	table, err := aspect.Table(setName)
	if err != nil {
		return "", nil, nil, eris.Wrap(ErrInvalidRequest, err.Error())
	}

	bodies := e.defaults.Bodies
	if len(req.Bodies) > 0 {
		parsed, err := model.ParseBodies(req.Bodies)
		if err != nil {
			return "", nil, nil, eris.Wrap(ErrInvalidRequest, err.Error())
		}
		bodies = parsed
	}
	return hs, table, bodies, nil
}

func (e *Engine) validateRequest(req Request) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "chart: validate request")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return eris.Wrap(ErrInvalidRequest, strings.Join(msgs, "; "))
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("house_system", func(fl validator.FieldLevel) bool {
		_, err := model.ParseHouseSystem(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("body", func(fl validator.FieldLevel) bool {
		b, err := model.ParseBody(fl.Field().String())
		return err == nil && !b.IsAngle()
	})
	return v
}

// sunTimes returns sunrise and sunset on the local birth date, or nil when
// the Sun does not rise or set that day.
func sunTimes(geo model.GeoLocation, local instant.LocalDateTime) *SunTimes {
	rise, set := sunrise.SunriseSunset(geo.Latitude, geo.Longitude, local.Year, local.Month, local.Day)
	if rise.IsZero() || set.IsZero() {
		return nil
	}
	return &SunTimes{Sunrise: rise.UTC(), Sunset: set.UTC()}
}
