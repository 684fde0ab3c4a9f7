package auth

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fretwork/herald/db"
	"github.com/fretwork/herald/models"
	"github.com/fretwork/herald/settings"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Initialize(); err != nil {
		t.Fatalf("initializing database: %v", err)
	}
	return database
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	b, _ := NewToken()
	if a == b {
		t.Error("two tokens were identical")
	}
	if len(a) != 44 { // 32 bytes, base64
		t.Errorf("token length = %d, want 44", len(a))
	}
}

func TestNewPairingCode(t *testing.T) {
	code, err := NewPairingCode()
	if err != nil {
		t.Fatalf("NewPairingCode() error = %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("code length = %d, want 8", len(code))
	}
	for _, c := range code {
		if !strings.ContainsRune(codeAlphabet, c) {
			t.Errorf("code %q contains %q outside the alphabet", code, c)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"Bearer  abc123 ", "abc123"},
		{"bearer abc123", ""},
		{"Basic abc123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(r); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestPairingFlow(t *testing.T) {
	database := testDB(t)
	svc := NewPairingService(database, discard())

	code, expiresIn, err := svc.Request("client-1")
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if expiresIn != 300 {
		t.Errorf("expiresIn = %d, want 300", expiresIn)
	}

	// Still pending.
	if _, paired, _ := svc.Status("client-1"); paired {
		t.Error("Status() reported paired before completion")
	}

	user, err := svc.Complete(code, "chat-42", "Shredder")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if user.ExternalID != "chat-42" || user.AuthToken == "" {
		t.Fatalf("completed user = %+v", user)
	}

	token, paired, err := svc.Status("client-1")
	if err != nil || !paired {
		t.Fatalf("Status() = %v, paired=%v", err, paired)
	}
	if token != user.AuthToken {
		t.Errorf("Status token = %q, want the issued token", token)
	}

	// Tokens authenticate against the users table.
	got, err := database.GetUserByToken(token)
	if err != nil || got == nil || got.ID != user.ID {
		t.Errorf("GetUserByToken() = %+v, %v", got, err)
	}

	// A code redeems once.
	if _, err := svc.Complete(code, "chat-43", "Other"); err != ErrCodeUsed {
		t.Errorf("second Complete() error = %v, want ErrCodeUsed", err)
	}
	if _, err := svc.Complete("NOPE1234", "chat-44", ""); err != ErrCodeNotFound {
		t.Errorf("unknown code error = %v, want ErrCodeNotFound", err)
	}
}

func TestCompleteReusesExistingToken(t *testing.T) {
	database := testDB(t)
	svc := NewPairingService(database, discard())

	code1, _, _ := svc.Request("client-a")
	first, err := svc.Complete(code1, "chat-7", "Player")
	if err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}

	// Same person pairs a second machine: same token comes back.
	code2, _, _ := svc.Request("client-b")
	second, err := svc.Complete(code2, "chat-7", "Player")
	if err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}
	if second.AuthToken != first.AuthToken {
		t.Errorf("re-pairing issued a new token; existing clients would break")
	}
}

func TestCompletePersistsRenamedUser(t *testing.T) {
	database := testDB(t)
	svc := NewPairingService(database, discard())

	code1, _, _ := svc.Request("client-a")
	first, err := svc.Complete(code1, "chat-7", "OldName")
	if err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}

	code2, _, _ := svc.Request("client-b")
	if _, err := svc.Complete(code2, "chat-7", "NewName"); err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}

	// The rename survives a fresh read; record-holder lookups see it.
	stored, err := database.GetUserByID(first.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetUserByID() = %+v, %v", stored, err)
	}
	if stored.DisplayName != "NewName" {
		t.Errorf("stored display name = %q, want NewName", stored.DisplayName)
	}
}

func TestCompleteExpiredCode(t *testing.T) {
	database := testDB(t)
	svc := NewPairingService(database, discard())

	past := time.Now().UTC().Add(-time.Hour)
	if err := database.CreatePairingCode(&models.PairingTicket{
		Code:      "OLDCODE1",
		ClientID:  "client-x",
		CreatedAt: past.Add(-codeTTL),
		ExpiresAt: past,
	}); err != nil {
		t.Fatalf("seeding ticket: %v", err)
	}

	if _, err := svc.Complete("OLDCODE1", "chat-9", ""); err != ErrCodeExpired {
		t.Errorf("Complete(expired) error = %v, want ErrCodeExpired", err)
	}

	// The sweep removes it entirely.
	if err := svc.SweepExpired(); err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if _, err := svc.Complete("OLDCODE1", "chat-9", ""); err != ErrCodeNotFound {
		t.Errorf("Complete(swept) error = %v, want ErrCodeNotFound", err)
	}
}

func rateLimitConfig(enabled bool, perMinute, failedLimit int) settings.APIConfig {
	var cfg settings.APIConfig
	cfg.RateLimiting.Enabled = enabled
	cfg.RateLimiting.MaxRequestsPerMinute = perMinute
	cfg.RateLimiting.FailedAuthLimit = failedLimit
	return cfg
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(rateLimitConfig(true, 2, 0))
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		statuses = append(statuses, w.Code)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("requests within budget got %v", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("request over budget got %d, want 429", statuses[2])
	}

	// Another IP has its own budget.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.2:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("fresh IP got %d, want 200", w.Code)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(rateLimitConfig(false, 1, 0))
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("disabled limiter rejected request %d with %d", i, w.Code)
		}
	}
}

func TestFailedAuthTracking(t *testing.T) {
	rl := NewRateLimiter(rateLimitConfig(true, 60, 2))

	if rl.TooManyFailures("10.0.0.1") {
		t.Error("fresh IP already locked out")
	}
	rl.RecordFailedAuth("10.0.0.1")
	rl.RecordFailedAuth("10.0.0.1")
	if !rl.TooManyFailures("10.0.0.1") {
		t.Error("IP at the failed-auth limit not locked out")
	}
	if rl.TooManyFailures("10.0.0.2") {
		t.Error("unrelated IP locked out")
	}

	rl.ResetFailures()
	if rl.TooManyFailures("10.0.0.1") {
		t.Error("lockout survived the periodic reset")
	}
}
