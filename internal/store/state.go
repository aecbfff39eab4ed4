package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a local state key has no value.
var ErrNotFound = errors.New("not found")

// SetLocalState stores value under key, replacing any previous value.
func (db *DB) SetLocalState(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO local_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetLocalState returns the value stored under key, or ErrNotFound.
func (db *DB) GetLocalState(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM local_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// DeleteLocalState removes key. Deleting a missing key is not an error.
func (db *DB) DeleteLocalState(key string) error {
	_, err := db.Exec(`DELETE FROM local_state WHERE key = ?`, key)
	return err
}
