package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/db"
	"github.com/sells-group/natal-cli/internal/model"
)

// PostgresCache implements LocationCache on Postgres with PostGIS. The
// place point is kept as a geometry so cached places can be queried
// spatially.
type PostgresCache struct {
	pool db.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgresCache creates a cache over pool. Close closes the pool.
func NewPostgresCache(pool db.Pool, ttl time.Duration) *PostgresCache {
	return &PostgresCache{pool: pool, ttl: ttlOrDefault(ttl), now: time.Now}
}

// Close closes the pool.
func (c *PostgresCache) Close() error {
	c.pool.Close()
	return nil
}

// Migrate applies pending schema migrations.
func (c *PostgresCache) Migrate(ctx context.Context) error {
	return Migrate(ctx, c.pool)
}

// Get implements LocationCache.
func (c *PostgresCache) Get(ctx context.Context, key string) (*model.GeoLocation, error) {
	var (
		loc     model.GeoLocation
		point   []byte
		zone    *string
		offset  *int
		country *string
	)
	err := c.pool.QueryRow(ctx,
		`SELECT found, formatted_name, latitude, longitude, ST_AsEWKB(geom), zone_name, utc_offset_seconds, country_name, source
		 FROM natal.location_cache WHERE key = $1 AND expires_at > $2`,
		key, c.now(),
	).Scan(&loc.Found, &loc.FormattedName, &loc.Latitude, &loc.Longitude, &point, &zone, &offset, &country, &loc.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get location %s", key)
	}

	if len(point) > 0 {
		lat, lon, err := decodePoint(point)
		if err != nil {
			zap.L().Warn("postgres: undecodable cached point, using columns",
				zap.String("key", key), zap.Error(err))
		} else {
			loc.Latitude, loc.Longitude = lat, lon
		}
	}
	loc.Timezone = timezoneFromColumns(zone, offset, country)
	return &loc, nil
}

// Put implements LocationCache.
func (c *PostgresCache) Put(ctx context.Context, key string, loc model.GeoLocation) error {
	var point []byte
	if loc.Found {
		p, err := encodePoint(loc.Latitude, loc.Longitude)
		if err != nil {
			return err
		}
		point = p
	}
	now := c.now()
	zone, offset, country := timezoneColumns(loc.Timezone)

	_, err := c.pool.Exec(ctx,
		`INSERT INTO natal.location_cache
			(key, found, formatted_name, latitude, longitude, geom, zone_name, utc_offset_seconds, country_name, source, cached_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, ST_GeomFromEWKB($6), $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (key) DO UPDATE SET
			found = EXCLUDED.found,
			formatted_name = EXCLUDED.formatted_name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			geom = EXCLUDED.geom,
			zone_name = EXCLUDED.zone_name,
			utc_offset_seconds = EXCLUDED.utc_offset_seconds,
			country_name = EXCLUDED.country_name,
			source = EXCLUDED.source,
			cached_at = EXCLUDED.cached_at,
			expires_at = EXCLUDED.expires_at`,
		key, loc.Found, loc.FormattedName, loc.Latitude, loc.Longitude, point,
		zone, offset, country, loc.Source, now, now.Add(c.ttl),
	)
	return eris.Wrapf(err, "postgres: put location %s", key)
}

var seedUpsert = db.UpsertConfig{
	Table: "natal.location_cache",
	Columns: []string{
		"key", "found", "formatted_name", "latitude", "longitude",
		"zone_name", "utc_offset_seconds", "country_name", "source", "cached_at", "expires_at",
	},
	ConflictKeys: []string{"key"},
}

// Seed bulk-writes entries, then derives the geometry of the new rows from
// their coordinate columns.
func (c *PostgresCache) Seed(ctx context.Context, entries []Entry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	now := c.now()
	rows := make([][]any, len(entries))
	for i, e := range entries {
		zone, offset, country := timezoneColumns(e.Location.Timezone)
		rows[i] = []any{
			e.Key, e.Location.Found, e.Location.FormattedName, e.Location.Latitude, e.Location.Longitude,
			zone, offset, country, e.Location.Source, now, now.Add(c.ttl),
		}
	}

	n, err := db.BulkUpsert(ctx, c.pool, seedUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: seed")
	}
	if _, err := c.pool.Exec(ctx,
		`UPDATE natal.location_cache SET geom = ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)
		 WHERE found AND geom IS NULL`,
	); err != nil {
		return n, eris.Wrap(err, "postgres: seed geometry")
	}
	return n, nil
}

// Prune deletes expired rows and returns how many were removed.
func (c *PostgresCache) Prune(ctx context.Context) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM natal.location_cache WHERE expires_at <= $1`, c.now())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune")
	}
	return tag.RowsAffected(), nil
}

// encodePoint returns the EWKB of a WGS84 point. EWKB is x/y, so longitude
// comes first.
func encodePoint(lat, lon float64) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return data, nil
}

func decodePoint(data []byte) (lat, lon float64, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("postgres: cached geometry is %T, not a point", g)
	}
	return p.Y(), p.X(), nil
}
