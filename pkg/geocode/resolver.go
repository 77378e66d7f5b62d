package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/model"
)

// SourceCache is the Source of a location served from the cache.
const SourceCache = "cache"

// Cache stores resolved locations, including not-found results. Get returns
// (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*model.GeoLocation, error)
	Put(ctx context.Context, key string, loc model.GeoLocation) error
}

// Observer is notified of resolver outcomes.
type Observer interface {
	// LocationResolved is called once per lookup with the provider name,
	// SourceCache, or "none" when nothing matched.
	LocationResolved(source string)
	// LocationCache is called with "hit", "miss" or "error".
	LocationCache(result string)
}

// Resolver turns a place name into a GeoLocation by trying its providers in
// order.
type Resolver struct {
	providers []Provider
	cache     Cache
	observer  Observer
	now       func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache enables the location cache.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithObserver sets the observer.
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		r.observer = o
	}
}

// WithReferenceClock sets the clock at which zone offsets are evaluated.
func WithReferenceClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a Resolver over providers, tried in the given order.
func NewResolver(providers []Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers: providers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CacheKey returns the cache key of a place name: the hex SHA-256 of its
// normalized form.
func CacheKey(place string) string {
	sum := sha256.Sum256([]byte(Normalize(place)))
	return hex.EncodeToString(sum[:])
}

// Resolve looks up place. An empty name returns the not-found sentinel with
// ErrEmptyInput. A name nothing matches returns the sentinel and a nil
// error; check Found.
//
// Local providers are tried before the cache, so a reloaded gazetteer takes
// effect at once even for places cached earlier as missing. Only answers
// from remote providers are cached.
func (r *Resolver) Resolve(ctx context.Context, place string) (model.GeoLocation, error) {
	q := NewQuery(place)
	if q.Empty() {
		return model.NotFoundLocation(place), ErrEmptyInput
	}

	var local, remote []Provider
	for _, p := range r.providers {
		if isLocal(p) {
			local = append(local, p)
		} else {
			remote = append(remote, p)
		}
	}

	loc, ok, localFailed := r.tryProviders(ctx, local, q)
	if ok {
		return loc, nil
	}

	key := CacheKey(place)
	if cached, ok := r.fromCache(ctx, key); ok {
		r.resolved(SourceCache)
		if !cached.Found {
			return model.NotFoundLocation(place), nil
		}
		cached.Source = SourceCache
		return cached, nil
	}

	loc, ok, remoteFailed := r.tryProviders(ctx, remote, q)
	if ok {
		r.toCache(ctx, key, loc)
		return loc, nil
	}

	notFound := model.NotFoundLocation(place)
	// A provider error leaves the answer unknown, so only a clean miss is cached.
	if !localFailed && !remoteFailed {
		r.toCache(ctx, key, notFound)
	}
	r.resolved("none")
	return notFound, nil
}

// isLocal reports whether p answers from in-process data.
func isLocal(p Provider) bool {
	l, ok := p.(interface{ Local() bool })
	return ok && l.Local()
}

// tryProviders returns the first match among ps. failed is set when any
// provider returned an error.
func (r *Resolver) tryProviders(ctx context.Context, ps []Provider, q Query) (loc model.GeoLocation, ok, failed bool) {
	for _, p := range ps {
		if !p.Available() {
			continue
		}
		m, err := p.Lookup(ctx, q)
		if err != nil {
			failed = true
			zap.L().Debug("geocode: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.String("place", q.Raw),
				zap.Error(err),
			)
			continue
		}
		if m == nil {
			zap.L().Debug("geocode: provider has no match",
				zap.String("provider", p.Name()),
				zap.String("place", q.Raw),
			)
			continue
		}
		r.resolved(p.Name())
		return r.toLocation(m, p.Name()), true, failed
	}
	return model.GeoLocation{}, false, failed
}

func (r *Resolver) toLocation(m *Match, source string) model.GeoLocation {
	loc := model.GeoLocation{
		Latitude:      m.Latitude,
		Longitude:     m.Longitude,
		FormattedName: m.FormattedName,
		Found:         true,
		Source:        source,
	}
	if m.HasZone() {
		loc.Timezone = &model.Timezone{
			ZoneName:         m.ZoneName,
			UTCOffsetSeconds: offsetAt(m.ZoneName, m.OffsetSeconds, r.now()),
			CountryName:      m.CountryName,
		}
	}
	return loc
}

// offsetAt evaluates zone at t, falling back to the source-reported offset
// when the zone is unknown to the local tz database.
func offsetAt(zone string, fallback int, t time.Time) int {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return fallback
	}
	_, offset := t.In(loc).Zone()
	return offset
}

func (r *Resolver) fromCache(ctx context.Context, key string) (model.GeoLocation, bool) {
	if r.cache == nil {
		return model.GeoLocation{}, false
	}
	loc, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		zap.L().Warn("geocode: cache read failed", zap.Error(err))
		r.cacheResult("error")
		return model.GeoLocation{}, false
	case loc == nil:
		r.cacheResult("miss")
		return model.GeoLocation{}, false
	default:
		r.cacheResult("hit")
		return *loc, true
	}
}

func (r *Resolver) toCache(ctx context.Context, key string, loc model.GeoLocation) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, key, loc); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.Error(err))
	}
}

func (r *Resolver) resolved(source string) {
	if r.observer != nil {
		r.observer.LocationResolved(source)
	}
}

func (r *Resolver) cacheResult(result string) {
	if r.observer != nil {
		r.observer.LocationCache(result)
	}
}
