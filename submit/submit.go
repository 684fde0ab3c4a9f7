// Package submit is the tracker's HTTP client: score submission, pairing
// and hash resolution against the herald server.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrUnauthorized signals an invalid auth token. Callers mark the score
// seen anyway; re-submitting cannot help until the user re-pairs.
var ErrUnauthorized = errors.New("submit: unauthorized")

const submitTimeout = 5 * time.Second

// Client talks to one herald server.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient builds a client for baseURL. The token may be empty until
// pairing completes.
func NewClient(baseURL, authToken string, logger *log.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: submitTimeout},
		logger:     logger,
	}
}

// SetToken installs the token issued by pairing.
func (c *Client) SetToken(token string) {
	c.authToken = token
}

// ScoreRequest is the POST /api/score body.
type ScoreRequest struct {
	AuthToken         string  `json:"auth_token"`
	ChartHash         string  `json:"chart_hash"`
	InstrumentID      int     `json:"instrument_id"`
	DifficultyID      int     `json:"difficulty_id"`
	Score             int     `json:"score"`
	CompletionPercent float64 `json:"completion_percent,omitempty"`
	Stars             int     `json:"stars,omitempty"`
	SongTitle         string  `json:"song_title,omitempty"`
	SongArtist        string  `json:"song_artist,omitempty"`
	SongCharter       string  `json:"song_charter,omitempty"`
	ScoreType         string  `json:"score_type"` // "raw" | "rich"
	NotesHit          *int    `json:"notes_hit,omitempty"`
	NotesTotal        *int    `json:"notes_total,omitempty"`
	BestStreak        *int    `json:"best_streak,omitempty"`
	TotalNotesInChart *int    `json:"total_notes_in_chart,omitempty"`
	NPS               float64 `json:"nps,omitempty"`
	PlayCount         int     `json:"play_count,omitempty"`
}

// ScoreResult is the server's classification of one submission.
type ScoreResult struct {
	Success          bool    `json:"success"`
	IsHighScore      bool    `json:"is_high_score"`
	IsRecordBroken   bool    `json:"is_record_broken"`
	IsFirstTimeScore bool    `json:"is_first_time_score"`
	IsPersonalBest   bool    `json:"is_personal_best"`
	IsFullCombo      bool    `json:"is_full_combo"`
	IsFirstFC        bool    `json:"is_first_fc"`
	PreviousScore    *int    `json:"previous_score,omitempty"`
	PreviousHolder   *string `json:"previous_holder,omitempty"`
	YourBestScore    *int    `json:"your_best_score,omitempty"`
}

// SubmitScore posts one score. The auth token is filled in from the
// client; a 401 maps to ErrUnauthorized.
func (c *Client) SubmitScore(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	req.AuthToken = c.authToken

	var result ScoreResult
	if err := c.post(ctx, "/api/score", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ChartNaming is one resolved chart name for POST /api/resolve_hashes.
type ChartNaming struct {
	ChartHash string `json:"chart_hash"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	Charter   string `json:"charter,omitempty"`
}

// UnresolvedHashes asks the server which of this user's charts still lack
// a title.
func (c *Client) UnresolvedHashes(ctx context.Context) ([]string, error) {
	var body struct {
		Hashes []string `json:"hashes"`
	}
	if err := c.get(ctx, "/api/unresolved_hashes", &body); err != nil {
		return nil, err
	}
	return body.Hashes, nil
}

// ResolveHashes pushes locally resolved chart names back to the server.
func (c *Client) ResolveHashes(ctx context.Context, metadata []ChartNaming) (int, error) {
	req := struct {
		Metadata []ChartNaming `json:"metadata"`
	}{metadata}
	var resp struct {
		UpdatedCount int `json:"updated_count"`
	}
	if err := c.post(ctx, "/api/resolve_hashes", req, &resp); err != nil {
		return 0, err
	}
	return resp.UpdatedCount, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
