package db

import (
	"database/sql"
	"time"
)

// GetBotMetadata reads one bookkeeping value; ("", nil) when unset.
func (db *DB) GetBotMetadata(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM bot_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetBotMetadata upserts one bookkeeping value.
func (db *DB) SetBotMetadata(key, value string) error {
	_, err := db.Exec(`
	INSERT INTO bot_metadata (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	return err
}
