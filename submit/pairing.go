package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	pairPollInterval = 2 * time.Second
	pairDeadline     = 300 * time.Second
)

// Credentials is the tracker's persisted identity: a stable client id
// plus the auth token issued by pairing.
type Credentials struct {
	ClientID  string `json:"client_id"`
	AuthToken string `json:"auth_token"`
}

// LoadCredentials reads the credentials file; a missing file yields fresh
// credentials with a new client id and no token.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Credentials{ClientID: uuid.NewString()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if creds.ClientID == "" {
		creds.ClientID = uuid.NewString()
	}
	return &creds, nil
}

// SaveCredentials writes the credentials file atomically.
func SaveCredentials(path string, creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("creating temp credentials file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RequestPairing asks the server for a short pairing code the user types
// into the chat channel.
func (c *Client) RequestPairing(ctx context.Context, clientID string) (code string, expiresIn int, err error) {
	req := struct {
		ClientID string `json:"client_id"`
	}{clientID}
	var resp struct {
		PairingCode string `json:"pairing_code"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.post(ctx, "/api/pair/request", req, &resp); err != nil {
		return "", 0, err
	}
	return resp.PairingCode, resp.ExpiresIn, nil
}

// PairingStatus polls whether the chat side has completed pairing.
func (c *Client) PairingStatus(ctx context.Context, clientID string) (token string, paired bool, err error) {
	var resp struct {
		Paired    bool   `json:"paired"`
		AuthToken string `json:"auth_token"`
	}
	if err := c.get(ctx, "/api/pair/status/"+clientID, &resp); err != nil {
		return "", false, err
	}
	return resp.AuthToken, resp.Paired, nil
}

// Pair runs the whole exchange: request a code, hand it to onCode for
// display, then poll every 2 s until the chat side completes it or the
// 300 s deadline passes. The issued token is installed on the client.
func (c *Client) Pair(ctx context.Context, clientID string, onCode func(code string)) (string, error) {
	code, expiresIn, err := c.RequestPairing(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("requesting pairing code: %w", err)
	}
	onCode(code)

	deadline := pairDeadline
	if expiresIn > 0 {
		deadline = time.Duration(expiresIn) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(pairPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("pairing timed out: %w", ctx.Err())
		case <-ticker.C:
			token, paired, err := c.PairingStatus(ctx, clientID)
			if err != nil {
				c.logger.Printf("error polling pairing status: %v", err)
				continue
			}
			if paired && token != "" {
				c.SetToken(token)
				return token, nil
			}
		}
	}
}
