package db

import (
	"database/sql"
	"time"

	"github.com/fretwork/herald/models"
)

// CreatePairingCode stores one freshly issued pairing ticket.
func (db *DB) CreatePairingCode(t *models.PairingTicket) error {
	_, err := db.Exec(`
	INSERT INTO pairing_codes (code, client_id, external_id, auth_token,
		created_at, expires_at, completed)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Code, t.ClientID, t.ExternalID, t.AuthToken,
		t.CreatedAt, t.ExpiresAt, t.Completed)
	return err
}

func scanTicket(row *sql.Row) (*models.PairingTicket, error) {
	t := &models.PairingTicket{}
	err := row.Scan(&t.Code, &t.ClientID, &t.ExternalID, &t.AuthToken,
		&t.CreatedAt, &t.ExpiresAt, &t.Completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetPairingCode looks a ticket up by its short code, or (nil, nil).
func (db *DB) GetPairingCode(code string) (*models.PairingTicket, error) {
	return scanTicket(db.QueryRow(`
	SELECT code, client_id, external_id, auth_token, created_at, expires_at, completed
	FROM pairing_codes WHERE code = ?`, code))
}

// GetPairingByClientID returns the newest ticket for a client id, or
// (nil, nil). Clients poll this while waiting for the chat side.
func (db *DB) GetPairingByClientID(clientID string) (*models.PairingTicket, error) {
	return scanTicket(db.QueryRow(`
	SELECT code, client_id, external_id, auth_token, created_at, expires_at, completed
	FROM pairing_codes WHERE client_id = ?
	ORDER BY created_at DESC LIMIT 1`, clientID))
}

// CompletePairingCode marks a ticket done and records who paired and the
// token that was issued.
func (db *DB) CompletePairingCode(code, externalID, authToken string) error {
	_, err := db.Exec(`
	UPDATE pairing_codes SET external_id = ?, auth_token = ?, completed = 1
	WHERE code = ?`, externalID, authToken, code)
	return err
}

// DeleteExpiredPairingCodes sweeps tickets whose deadline has passed
// without completion.
func (db *DB) DeleteExpiredPairingCodes() error {
	_, err := db.Exec(`
	DELETE FROM pairing_codes WHERE completed = 0 AND expires_at < ?`,
		time.Now().UTC())
	return err
}
