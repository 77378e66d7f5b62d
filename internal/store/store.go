// Package store persists resolved birth places so repeated lookups of the
// same name skip the geocoding providers.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/natal-cli/internal/db"
	"github.com/sells-group/natal-cli/internal/model"
)

// DefaultTTL is used when a cache is created without a TTL.
const DefaultTTL = 30 * 24 * time.Hour

// LocationCache stores GeoLocations, including not-found results, by cache
// key. Get returns (nil, nil) for a missing or expired key.
type LocationCache interface {
	Get(ctx context.Context, key string) (*model.GeoLocation, error)
	Put(ctx context.Context, key string, loc model.GeoLocation) error
	Seed(ctx context.Context, entries []Entry) (int64, error)
	Prune(ctx context.Context) (int64, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Entry is one cache row for bulk seeding.
type Entry struct {
	Key      string
	Location model.GeoLocation
}

// Config selects and configures a cache backend.
type Config struct {
	Driver      string // "sqlite" or "postgres"
	DatabaseURL string // file path for sqlite, connection string for postgres
	TTL         time.Duration
	Pool        db.PoolConfig
}

// Open creates the configured cache.
func Open(ctx context.Context, cfg Config) (LocationCache, error) {
	if cfg.DatabaseURL == "" {
		return nil, eris.New("store: database_url is required")
	}
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteCache(cfg.DatabaseURL, cfg.TTL)
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.Pool)
		if err != nil {
			return nil, eris.Wrap(err, "store: connect postgres")
		}
		return NewPostgresCache(pool, cfg.TTL), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// timezoneColumns flattens an optional Timezone into nullable columns.
func timezoneColumns(tz *model.Timezone) (zone *string, offset *int, country *string) {
	if tz == nil {
		return nil, nil, nil
	}
	return &tz.ZoneName, &tz.UTCOffsetSeconds, &tz.CountryName
}

func timezoneFromColumns(zone *string, offset *int, country *string) *model.Timezone {
	if zone == nil {
		return nil
	}
	tz := &model.Timezone{ZoneName: *zone}
	if offset != nil {
		tz.UTCOffsetSeconds = *offset
	}
	if country != nil {
		tz.CountryName = *country
	}
	return tz
}
