package store

import (
	"database/sql"
	"errors"
	"time"
)

// KeyFilter holds the last applied filter in its shareable query form.
const KeyFilter = "filter"

// SetViewState upserts a persisted view value.
func (db *DB) SetViewState(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO view_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetViewState returns a persisted view value. A missing key yields ok=false.
func (db *DB) GetViewState(key string) (value string, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM view_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
