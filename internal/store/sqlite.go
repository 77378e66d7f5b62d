package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/natal-cli/internal/model"
)

// SQLiteCache implements LocationCache using modernc.org/sqlite.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache opens a SQLite database at dsn and configures WAL mode.
func NewSQLiteCache(dsn string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCache{db: db, ttl: ttlOrDefault(ttl), now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS location_cache (
	key                TEXT PRIMARY KEY,
	found              INTEGER NOT NULL,
	formatted_name     TEXT NOT NULL,
	latitude           REAL NOT NULL DEFAULT 0,
	longitude          REAL NOT NULL DEFAULT 0,
	zone_name          TEXT,
	utc_offset_seconds INTEGER,
	country_name       TEXT,
	source             TEXT NOT NULL DEFAULT '',
	cached_at          INTEGER NOT NULL,
	expires_at         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_location_cache_expires_at ON location_cache(expires_at);
`

const sqliteUpsert = `INSERT INTO location_cache
	(key, found, formatted_name, latitude, longitude, zone_name, utc_offset_seconds, country_name, source, cached_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		found = excluded.found,
		formatted_name = excluded.formatted_name,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		zone_name = excluded.zone_name,
		utc_offset_seconds = excluded.utc_offset_seconds,
		country_name = excluded.country_name,
		source = excluded.source,
		cached_at = excluded.cached_at,
		expires_at = excluded.expires_at`

// Migrate creates the cache table.
func (c *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Get implements LocationCache.
func (c *SQLiteCache) Get(ctx context.Context, key string) (*model.GeoLocation, error) {
	var (
		loc     model.GeoLocation
		zone    *string
		offset  *int
		country *string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT found, formatted_name, latitude, longitude, zone_name, utc_offset_seconds, country_name, source
		 FROM location_cache WHERE key = ? AND expires_at > ?`,
		key, c.now().Unix(),
	).Scan(&loc.Found, &loc.FormattedName, &loc.Latitude, &loc.Longitude, &zone, &offset, &country, &loc.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get location %s", key)
	}
	loc.Timezone = timezoneFromColumns(zone, offset, country)
	return &loc, nil
}

// Put implements LocationCache.
func (c *SQLiteCache) Put(ctx context.Context, key string, loc model.GeoLocation) error {
	_, err := c.db.ExecContext(ctx, sqliteUpsert, c.args(key, loc)...)
	return eris.Wrapf(err, "sqlite: put location %s", key)
}

// Seed writes entries in one transaction.
func (c *SQLiteCache) Seed(ctx context.Context, entries []Entry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, c.args(e.Key, e.Location)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed %s", e.Key)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: seed: commit")
	}
	return int64(len(entries)), nil
}

// Prune deletes expired rows and returns how many were removed.
func (c *SQLiteCache) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM location_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune rows affected")
	}
	return n, nil
}

func (c *SQLiteCache) args(key string, loc model.GeoLocation) []any {
	now := c.now()
	zone, offset, country := timezoneColumns(loc.Timezone)
	return []any{
		key, loc.Found, loc.FormattedName, loc.Latitude, loc.Longitude,
		zone, offset, country, loc.Source,
		now.Unix(), now.Add(c.ttl).Unix(),
	}
}
