package submit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestSubmitScoreFillsToken(t *testing.T) {
	var got ScoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/score" {
			t.Errorf("path = %s, want /api/score", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		json.NewEncoder(w).Encode(ScoreResult{Success: true, IsFirstTimeScore: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1", discard())
	result, err := c.SubmitScore(context.Background(), ScoreRequest{
		ChartHash: "00112233445566778899aabbccddeeff", Score: 100000, ScoreType: "rich",
	})
	if err != nil {
		t.Fatalf("SubmitScore() error = %v", err)
	}
	if !result.Success || !result.IsFirstTimeScore {
		t.Errorf("SubmitScore() = %+v", result)
	}
	if got.AuthToken != "tok-1" {
		t.Errorf("auth_token = %q, want tok-1", got.AuthToken)
	}
}

func TestSubmitScoreUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-token", discard())
	_, err := c.SubmitScore(context.Background(), ScoreRequest{ChartHash: "x", Score: 1})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("SubmitScore() error = %v, want ErrUnauthorized", err)
	}
}

func TestSubmitScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", discard())
	_, err := c.SubmitScore(context.Background(), ScoreRequest{ChartHash: "x", Score: 1})
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Errorf("SubmitScore() error = %v, want transient error", err)
	}
}

func TestHashResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/unresolved_hashes":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"hashes": []string{"aa", "bb"}})
		case "/api/resolve_hashes":
			var body struct {
				Metadata []ChartNaming `json:"metadata"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]int{"updated_count": len(body.Metadata)})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", discard())
	hashes, err := c.UnresolvedHashes(context.Background())
	if err != nil {
		t.Fatalf("UnresolvedHashes() error = %v", err)
	}
	if len(hashes) != 2 {
		t.Errorf("UnresolvedHashes() = %v, want 2", hashes)
	}

	n, err := c.ResolveHashes(context.Background(), []ChartNaming{
		{ChartHash: "aa", Title: "Song A"},
	})
	if err != nil {
		t.Fatalf("ResolveHashes() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ResolveHashes() = %d, want 1", n)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if creds.ClientID == "" {
		t.Fatalf("fresh credentials missing client id")
	}
	if creds.AuthToken != "" {
		t.Fatalf("fresh credentials should have no token")
	}

	creds.AuthToken = "issued"
	if err := SaveCredentials(path, creds); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}

	loaded, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if loaded.ClientID != creds.ClientID || loaded.AuthToken != "issued" {
		t.Errorf("reloaded = %+v, want %+v", loaded, creds)
	}
}

func TestLoadCredentialsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}
	if _, err := LoadCredentials(path); err == nil {
		t.Errorf("LoadCredentials(corrupt) error = nil, want error")
	}
}
