package store

import (
	"database/sql"
	"errors"
	"time"
)

// cacheRow mirrors one row of the cache table.
type cacheRow struct {
	Data      []byte       `db:"data"`
	ExpiresAt sql.NullTime `db:"expires_at"`
}

func (r cacheRow) expired(now time.Time) bool {
	return r.ExpiresAt.Valid && now.After(r.ExpiresAt.Time)
}

// GetCache returns the cached blob for key, or nil if absent or expired.
// Expired rows are deleted on read.
func (db *DB) GetCache(key string) ([]byte, error) {
	var row cacheRow
	err := db.Get(&row, `SELECT data, expires_at FROM cache WHERE key = ?`, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	}

	if row.expired(time.Now()) {
		_, _ = db.Exec(`DELETE FROM cache WHERE key = ?`, key)
		return nil, nil
	}
	return row.Data, nil
}

// SetCache stores data under key, replacing any previous value. ttl <= 0
// means no expiry.
func (db *DB) SetCache(key string, data []byte, ttl time.Duration) error {
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	_, err := db.Exec(`INSERT INTO cache (key, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		key, data, expiresAt)
	return err
}

// PruneCache removes every row whose expiry has passed.
func (db *DB) PruneCache() (int64, error) {
	res, err := db.Exec(`DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearCache drops every cached row.
func (db *DB) ClearCache() error {
	_, err := db.Exec(`DELETE FROM cache`)
	return err
}
