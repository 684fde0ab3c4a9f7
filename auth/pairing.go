package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fretwork/herald/db"
	"github.com/fretwork/herald/models"
)

// codeTTL is how long a pairing code stays redeemable.
const codeTTL = 300 * time.Second

var (
	// ErrCodeNotFound means the code does not exist or has been swept.
	ErrCodeNotFound = errors.New("auth: pairing code not found")
	// ErrCodeExpired means the code's deadline passed before completion.
	ErrCodeExpired = errors.New("auth: pairing code expired")
	// ErrCodeUsed means the code was already redeemed.
	ErrCodeUsed = errors.New("auth: pairing code already used")
)

// PairingService issues short codes to clients and redeems them from
// the chat side, minting users and tokens as needed.
type PairingService struct {
	db     *db.DB
	logger *log.Logger
}

func NewPairingService(database *db.DB, logger *log.Logger) *PairingService {
	return &PairingService{db: database, logger: logger}
}

// Request issues a fresh code for a client. Old unredeemed codes for the
// same client keep working until they expire; polling always follows the
// newest one.
func (p *PairingService) Request(clientID string) (code string, expiresIn int, err error) {
	code, err = NewPairingCode()
	if err != nil {
		return "", 0, fmt.Errorf("generating pairing code: %w", err)
	}

	now := time.Now().UTC()
	ticket := &models.PairingTicket{
		Code:      code,
		ClientID:  clientID,
		CreatedAt: now,
		ExpiresAt: now.Add(codeTTL),
	}
	if err := p.db.CreatePairingCode(ticket); err != nil {
		return "", 0, fmt.Errorf("storing pairing code: %w", err)
	}
	p.logger.Printf("issued pairing code %s for client %s", code, clientID)
	return code, int(codeTTL.Seconds()), nil
}

// Status reports the newest ticket for a client: the issued token once
// the chat side completed pairing, otherwise paired=false.
func (p *PairingService) Status(clientID string) (token string, paired bool, err error) {
	ticket, err := p.db.GetPairingByClientID(clientID)
	if err != nil {
		return "", false, err
	}
	if ticket == nil || !ticket.Completed || ticket.AuthToken == nil {
		return "", false, nil
	}
	return *ticket.AuthToken, true, nil
}

// Complete redeems a code from the chat side: finds or creates the user
// for externalID, issues (or reuses) their token, and marks the ticket
// done. Returns the paired user.
func (p *PairingService) Complete(code, externalID, displayName string) (*models.User, error) {
	ticket, err := p.db.GetPairingCode(code)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrCodeNotFound
	}
	if ticket.Completed {
		return nil, ErrCodeUsed
	}
	if time.Now().UTC().After(ticket.ExpiresAt) {
		return nil, ErrCodeExpired
	}

	user, err := p.db.GetUserByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		token, err := NewToken()
		if err != nil {
			return nil, fmt.Errorf("generating token: %w", err)
		}
		now := time.Now().UTC()
		user = &models.User{
			ExternalID:  externalID,
			DisplayName: displayName,
			AuthToken:   token,
			CreatedAt:   now,
			LastSeen:    now,
		}
		id, err := p.db.CreateUser(user)
		if err != nil {
			return nil, fmt.Errorf("creating user: %w", err)
		}
		user.ID = id
	} else if displayName != "" && displayName != user.DisplayName {
		// Keep the stored display name current; the token stays stable so
		// the user's other clients keep working.
		if err := p.db.UpdateUserDisplayName(user.ID, displayName); err != nil {
			return nil, fmt.Errorf("updating display name: %w", err)
		}
		user.DisplayName = displayName
	}

	if err := p.db.CompletePairingCode(code, externalID, user.AuthToken); err != nil {
		return nil, fmt.Errorf("completing pairing: %w", err)
	}
	p.logger.Printf("pairing code %s redeemed by %s", code, externalID)
	return user, nil
}

// SweepExpired deletes expired unredeemed codes. Meant to be run
// periodically.
func (p *PairingService) SweepExpired() error {
	return p.db.DeleteExpiredPairingCodes()
}
