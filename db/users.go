package db

import (
	"database/sql"
	"time"

	"github.com/fretwork/herald/models"
)

// CreateUser adds a new user to the database
func (db *DB) CreateUser(user *models.User) (int64, error) {
	now := time.Now().UTC()

	result, err := db.Exec(`
	INSERT INTO users (external_id, display_name, auth_token, created_at, last_seen)
	VALUES (?, ?, ?, ?, ?)`,
		user.ExternalID, user.DisplayName, user.AuthToken, now, now)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.ExternalID, &user.DisplayName,
		&user.AuthToken, &user.CreatedAt, &user.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByToken retrieves a user by their auth token
func (db *DB) GetUserByToken(token string) (*models.User, error) {
	return scanUser(db.QueryRow(`
	SELECT id, external_id, display_name, auth_token, created_at, last_seen
	FROM users WHERE auth_token = ?`, token))
}

// GetUserByExternalID retrieves a user by their chat-platform id
func (db *DB) GetUserByExternalID(externalID string) (*models.User, error) {
	return scanUser(db.QueryRow(`
	SELECT id, external_id, display_name, auth_token, created_at, last_seen
	FROM users WHERE external_id = ?`, externalID))
}

// GetUserByID retrieves a user by primary key
func (db *DB) GetUserByID(id int64) (*models.User, error) {
	return scanUser(db.QueryRow(`
	SELECT id, external_id, display_name, auth_token, created_at, last_seen
	FROM users WHERE id = ?`, id))
}

// TouchUserLastSeen stamps the user's last_seen to now
func (db *DB) TouchUserLastSeen(userID int64) error {
	_, err := db.Exec(`UPDATE users SET last_seen = ? WHERE id = ?`,
		time.Now().UTC(), userID)
	return err
}

// UpdateUserToken replaces a user's auth token (re-pairing)
func (db *DB) UpdateUserToken(userID int64, token string) error {
	_, err := db.Exec(`UPDATE users SET auth_token = ?, last_seen = ? WHERE id = ?`,
		token, time.Now().UTC(), userID)
	return err
}

// UpdateUserDisplayName renames a user; announcements and record-holder
// lookups read the stored name.
func (db *DB) UpdateUserDisplayName(userID int64, displayName string) error {
	_, err := db.Exec(`UPDATE users SET display_name = ? WHERE id = ?`,
		displayName, userID)
	return err
}
