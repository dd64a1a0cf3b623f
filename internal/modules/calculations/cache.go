// Package calculations persists expensive intermediate results in SQLite so
// repeated analyses over the same window skip the regression and covariance
// work. Payloads are msgpack encoded; every row carries a kind-specific TTL.
package calculations

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/argus/internal/database"
)

// Kind labels what a cache row holds and selects its TTL.
type Kind string

const (
	KindFactorModel Kind = "factor_model"
	KindCovariance  Kind = "covariance"
	KindAnalysis    Kind = "analysis"
)

// TTLs per kind. Daily bars only change once a day, so models keyed by a
// fixed window stay valid far longer than assembled analyses, which also
// embed limits and scoring.
var ttlByKind = map[Kind]time.Duration{
	KindFactorModel: 24 * time.Hour,
	KindCovariance:  24 * time.Hour,
	KindAnalysis:    time.Hour,
}

const schema = `
CREATE TABLE IF NOT EXISTS calc_cache (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	blob       BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calc_cache_expires ON calc_cache(expires_at);
`

// Cache is a write-once result cache: the first writer of a key wins and
// later identical computations read it back until the TTL lapses. Keys are
// content fingerprints, so a stale overwrite cannot change a result, only
// recompute it.
type Cache struct {
	db  *database.DB
	log zerolog.Logger
	now func() time.Time
}

// NewCache opens the cache on the given database, creating the table when
// missing.
func NewCache(db *database.DB, log zerolog.Logger) (*Cache, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating calc_cache schema: %w", err)
	}
	return &Cache{
		db:  db,
		log: log.With().Str("component", "calculations").Logger(),
		now: time.Now,
	}, nil
}

// Get decodes the row at key into dest. A missing, expired, or differently
// kinded row is a miss, not an error.
func (c *Cache) Get(key string, kind Kind, dest interface{}) (bool, error) {
	var (
		gotKind   string
		blob      []byte
		expiresAt int64
	)
	row := c.db.QueryRow(
		`SELECT kind, blob, expires_at FROM calc_cache WHERE key = ?`, key,
	)
	if err := row.Scan(&gotKind, &blob, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("reading cache row: %w", err)
	}

	if Kind(gotKind) != kind {
		c.log.Warn().Str("key", key).Str("kind", gotKind).Msg("Cache row kind mismatch")
		return false, nil
	}
	if expiresAt <= c.now().Unix() {
		return false, nil
	}

	if err := msgpack.Unmarshal(blob, dest); err != nil {
		return false, fmt.Errorf("decoding cache row %s: %w", key, err)
	}
	return true, nil
}

// Put stores value at key unless a live row already exists. Expired rows are
// replaced; live rows win because equal keys mean equal content.
func (c *Cache) Put(key string, kind Kind, value interface{}) error {
	blob, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache row %s: %w", key, err)
	}

	now := c.now()
	expiresAt := now.Add(ttlByKind[kind]).Unix()

	return database.WithTransaction(c.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM calc_cache WHERE key = ? AND expires_at <= ?`, key, now.Unix(),
		); err != nil {
			return err
		}
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO calc_cache (key, kind, blob, created_at, expires_at)
			 VALUES (?, ?, ?, ?, ?)`,
			key, string(kind), blob, now.Unix(), expiresAt,
		)
		return err
	})
}

// PurgeExpired deletes every lapsed row and reports how many went away.
func (c *Cache) PurgeExpired() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM calc_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Debug().Int64("rows", removed).Msg("Purged expired cache rows")
	}
	return removed, nil
}

// Stats reports row counts per kind, for the startup log line.
func (c *Cache) Stats() (map[Kind]int64, error) {
	rows, err := c.db.Query(`SELECT kind, COUNT(*) FROM calc_cache GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Kind]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		out[Kind(kind)] = count
	}
	return out, rows.Err()
}
