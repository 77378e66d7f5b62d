package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/chart"
	"github.com/sells-group/natal-cli/internal/db"
	"github.com/sells-group/natal-cli/internal/ephemeris"
	"github.com/sells-group/natal-cli/internal/monitoring"
	"github.com/sells-group/natal-cli/internal/resilience"
	"github.com/sells-group/natal-cli/internal/store"
	"github.com/sells-group/natal-cli/pkg/geocode"
)

// engineEnv holds everything the chart, batch and serve commands share.
type engineEnv struct {
	Engine    *chart.Engine
	Resolver  *geocode.Resolver
	Gazetteer *geocode.GazetteerProvider
	Chain     *ephemeris.Chain
	Metrics   *monitoring.Collector
	Cache     store.LocationCache // nil when caching is off
}

// Close releases the location cache.
func (e *engineEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initEngine validates the configuration for mode and wires the resolver,
// the ephemeris chain and the engine. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &engineEnv{Metrics: monitoring.NewCollector()}

	gaz, err := geocode.NewGazetteerProvider(cfg.Geocode.GazetteerPath)
	if err != nil {
		return nil, err
	}
	env.Gazetteer = gaz

	providers := []geocode.Provider{gaz}
	if cfg.Geocode.GoogleAPIKey != "" {
		providers = append(providers, newGoogleProvider())
		zap.L().Info("google geocoding enabled")
	} else {
		zap.L().Debug("NATAL_GEOCODE_GOOGLE_API_KEY not set, using the gazetteer only")
	}

	resolverOpts := []geocode.ResolverOption{geocode.WithObserver(env.Metrics)}
	if cfg.Geocode.CacheEnabled {
		cache, err := openCache(ctx)
		if err != nil {
			return nil, err
		}
		env.Cache = cache
		resolverOpts = append(resolverOpts, geocode.WithCache(cache))
	}
	env.Resolver = geocode.NewResolver(providers, resolverOpts...)

	layers, err := ephemeris.BuildLayers(cfg.Ephemeris.Layers, cfg.Ephemeris.DataDir)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Chain = ephemeris.NewChain(layers, ephemeris.WithObserver(env.Metrics))

	defaults, err := chart.DefaultsFromConfig(cfg.Chart)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Engine = chart.NewEngine(env.Resolver, env.Chain,
		chart.WithDefaults(defaults),
		chart.WithObserver(env.Metrics),
	)

	zap.L().Debug("engine ready",
		zap.Strings("layers", env.Chain.Layers()),
		zap.String("house_system", string(defaults.HouseSystem)),
		zap.Bool("cache", env.Cache != nil),
	)
	return env, nil
}

func newGoogleProvider() *geocode.GoogleProvider {
	timeout := time.Duration(cfg.Geocode.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := resilience.NewCircuitBreaker(resilience.FromCircuitConfig(
		cfg.Resilience.FailureThreshold,
		cfg.Resilience.ResetTimeoutSecs,
	))
	return geocode.NewGoogleProvider(cfg.Geocode.GoogleAPIKey,
		geocode.WithHTTPClient(&http.Client{Timeout: timeout}),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithCircuitBreaker(cb),
	)
}

// openCache opens the configured location cache and applies its schema.
func openCache(ctx context.Context) (store.LocationCache, error) {
	cache, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		TTL:         cfg.Geocode.CacheTTL(),
		Pool: db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := cache.Migrate(ctx); err != nil {
		_ = cache.Close()
		return nil, eris.Wrap(err, "migrate cache")
	}
	return cache, nil
}
