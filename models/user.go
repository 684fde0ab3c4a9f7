package models

import "time"

// User represents a paired player.
type User struct {
	ID          int64
	ExternalID  string // chat-platform user id
	DisplayName string
	AuthToken   string
	CreatedAt   time.Time
	LastSeen    time.Time
}

// PairingTicket is one short-lived pairing code issued to a client.
type PairingTicket struct {
	Code       string
	ClientID   string
	ExternalID *string // set once the chat side completes pairing
	AuthToken  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Completed  bool
}
