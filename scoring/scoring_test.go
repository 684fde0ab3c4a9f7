package scoring

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/fretwork/herald/db"
	"github.com/fretwork/herald/models"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var testFP = models.Fingerprint{
	ChartID:    "00112233445566778899aabbccddeeff",
	Instrument: models.Lead,
	Difficulty: models.Expert,
}

func newTestService(t *testing.T) (*Service, *db.DB) {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return NewService(database, discard()), database
}

func pairUser(t *testing.T, database *db.DB, externalID, name string) *models.User {
	t.Helper()
	u := &models.User{ExternalID: externalID, DisplayName: name, AuthToken: "token-" + externalID}
	id, err := database.CreateUser(u)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	u.ID = id
	return u
}

func intPtr(v int) *int { return &v }

func exactlyOneCategory(r *Result) bool {
	n := 0
	for _, b := range []bool{r.IsRecordBroken, r.IsFirstTimeScore, r.IsPersonalBest} {
		if b {
			n++
		}
	}
	return n <= 1
}

func TestSubmitUnauthorized(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SubmitScore(context.Background(), Request{
		AuthToken: "nope", Fingerprint: testFP, Score: 1,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("SubmitScore() error = %v, want ErrUnauthorized", err)
	}
}

func TestFirstTimeScore(t *testing.T) {
	svc, database := newTestService(t)
	u := pairUser(t, database, "u1", "Player One")

	res, err := svc.SubmitScore(context.Background(), Request{
		AuthToken: u.AuthToken, Fingerprint: testFP,
		Score: 100000, Stars: 5, CompletionPercent: 95,
		SongTitle: "Some Song",
	})
	if err != nil {
		t.Fatalf("SubmitScore() error = %v", err)
	}
	if !res.IsHighScore || !res.IsFirstTimeScore || res.IsRecordBroken || res.IsPersonalBest {
		t.Errorf("classification = %+v, want first-time high score", res)
	}
	if !exactlyOneCategory(res) {
		t.Errorf("categories not mutually exclusive: %+v", res)
	}

	row, err := db.GetUserScore(database, testFP, u.ID)
	if err != nil || row == nil || row.Score != 100000 {
		t.Errorf("stored row = %+v, %v", row, err)
	}
	song, _ := database.GetSong(testFP.ChartID)
	if song == nil || song.Title != "Some Song" {
		t.Errorf("song row = %+v, want title merged", song)
	}
}

func TestRecordBreakCapturesPreviousHolder(t *testing.T) {
	svc, database := newTestService(t)
	u1 := pairUser(t, database, "u1", "Challenger")
	u2 := pairUser(t, database, "u2", "Champion")

	if _, err := svc.SubmitScore(context.Background(), Request{
		AuthToken: u2.AuthToken, Fingerprint: testFP, Score: 100000,
	}); err != nil {
		t.Fatalf("seed submission error = %v", err)
	}

	res, err := svc.SubmitScore(context.Background(), Request{
		AuthToken: u1.AuthToken, Fingerprint: testFP, Score: 150000,
	})
	if err != nil {
		t.Fatalf("SubmitScore() error = %v", err)
	}
	if !res.IsRecordBroken || res.IsFirstTimeScore || res.IsPersonalBest {
		t.Errorf("classification = %+v, want record break", res)
	}
	if res.PreviousScore == nil || *res.PreviousScore != 100000 {
		t.Errorf("PreviousScore = %v, want 100000", res.PreviousScore)
	}
	if res.PreviousHolder != "Champion" {
		t.Errorf("PreviousHolder = %q, want Champion", res.PreviousHolder)
	}
	if res.PreviousSubmittedAt == nil {
		t.Errorf("PreviousSubmittedAt missing")
	}

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM record_breaks`).Scan(&count); err != nil || count != 1 {
		t.Errorf("record_breaks rows = %d, %v, want 1", count, err)
	}
}

func TestPersonalBestBelowRecord(t *testing.T) {
	svc, database := newTestService(t)
	u1 := pairUser(t, database, "u1", "Improver")
	u2 := pairUser(t, database, "u2", "Champion")

	for _, seed := range []struct {
		user  *models.User
		score int
	}{{u1, 100000}, {u2, 200000}} {
		if _, err := svc.SubmitScore(context.Background(), Request{
			AuthToken: seed.user.AuthToken, Fingerprint: testFP, Score: seed.score,
		}); err != nil {
			t.Fatalf("seed submission error = %v", err)
		}
	}

	res, err := svc.SubmitScore(context.Background(), Request{
		AuthToken: u1.AuthToken, Fingerprint: testFP, Score: 120000,
	})
	if err != nil {
		t.Fatalf("SubmitScore() error = %v", err)
	}
	if !res.IsPersonalBest || res.IsRecordBroken || res.IsFirstTimeScore {
		t.Errorf("classification = %+v, want personal best only", res)
	}
	if res.PreviousScore == nil || *res.PreviousScore != 100000 {
		t.Errorf("PreviousScore = %v, want 100000", res.PreviousScore)
	}
	if res.YourBestScore == nil || *res.YourBestScore != 120000 {
		t.Errorf("YourBestScore = %v, want 120000", res.YourBestScore)
	}
	if res.ServerRecord != 200000 {
		t.Errorf("ServerRecord = %d, want 200000", res.ServerRecord)
	}

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM record_breaks`).Scan(&count); err != nil || count != 0 {
		t.Errorf("record_breaks rows = %d, %v, want 0", count, err)
	}
}

func TestLowerScoreIsNoCategory(t *testing.T) {
	svc, database := newTestService(t)
	u1 := pairUser(t, database, "u1", "Player")
	u2 := pairUser(t, database, "u2", "Champion")

	if _, err := svc.SubmitScore(context.Background(), Request{
		AuthToken: u2.AuthToken, Fingerprint: testFP, Score: 200000,
	}); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	res, err := svc.SubmitScore(context.Background(), Request{
		AuthToken: u1.AuthToken, Fingerprint: testFP, Score: 50000,
	})
	if err != nil {
		t.Fatalf("SubmitScore() error = %v", err)
	}
	// First submission for this user but the fingerprint already has a
	// record: no category at all.
	if res.IsRecordBroken || res.IsFirstTimeScore || res.IsPersonalBest {
		t.Errorf("classification = %+v, want none", res)
	}
	if !res.IsHighScore {
		t.Errorf("first row for the user should still be their high score")
	}

	// A replay below their own best is not a high score either.
	res, err = svc.SubmitScore(context.Background(), Request{
		AuthToken: u1.AuthToken, Fingerprint: testFP, Score: 40000,
	})
	if err != nil {
		t.Fatalf("SubmitScore() error = %v", err)
	}
	if res.IsHighScore {
		t.Errorf("lower replay flagged as high score")
	}
	row, _ := db.GetUserScore(database, testFP, u1.ID)
	if row.Score != 50000 {
		t.Errorf("stored score = %d, want 50000 kept", row.Score)
	}
}

func TestFullComboRule(t *testing.T) {
	tests := []struct {
		name       string
		notesHit   *int
		total      *int
		completion float64
		want       bool
	}{
		{"exact hit and full completion", intPtr(450), intPtr(450), 100.0, true},
		{"boundary completion", intPtr(450), intPtr(450), 99.99, true},
		{"completion too low", intPtr(450), intPtr(450), 99.98, false},
		{"missed a note", intPtr(449), intPtr(450), 100.0, false},
		{"no notes data", nil, intPtr(450), 100.0, false},
		{"no chart total", intPtr(450), nil, 100.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFullCombo(tt.notesHit, tt.total, tt.completion); got != tt.want {
				t.Errorf("IsFullCombo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFullComboFlagsOnSubmit(t *testing.T) {
	svc, database := newTestService(t)
	u := pairUser(t, database, "u1", "Player")

	res, err := svc.SubmitScore(context.Background(), Request{
		AuthToken: u.AuthToken, Fingerprint: testFP, Score: 100000,
		CompletionPercent: 100, NotesHit: intPtr(450),
		NotesTotal: intPtr(450), TotalNotesInChart: intPtr(450),
	})
	if err != nil {
		t.Fatalf("SubmitScore() error = %v", err)
	}
	if !res.IsFullCombo || !res.IsFirstFC {
		t.Errorf("FC flags = %+v, want full combo and first FC", res)
	}
	// FirstTime and FC co-occur: FC is orthogonal to the categories.
	if !res.IsFirstTimeScore {
		t.Errorf("FC submission should still classify as first-time")
	}

	// A second FC by another user is not the first anymore.
	u2 := pairUser(t, database, "u2", "Second")
	res, err = svc.SubmitScore(context.Background(), Request{
		AuthToken: u2.AuthToken, Fingerprint: testFP, Score: 90000,
		CompletionPercent: 100, NotesHit: intPtr(450),
		NotesTotal: intPtr(450), TotalNotesInChart: intPtr(450),
	})
	if err != nil {
		t.Fatalf("SubmitScore() error = %v", err)
	}
	if !res.IsFullCombo || res.IsFirstFC {
		t.Errorf("second FC flags = %+v, want FC but not first", res)
	}
}

func TestBackfillDetectsMissedFC(t *testing.T) {
	svc, database := newTestService(t)
	u := pairUser(t, database, "u1", "Player")

	// A score recorded before the chart was ever parsed: notes_total is
	// stored but is_full_combo was never set.
	if err := db.UpsertScore(database, &models.Score{
		UserID: u.ID, Fingerprint: testFP, Score: 100000,
		CompletionPercent: 100, NotesTotal: intPtr(450),
		SubmittedAt: time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seeding score: %v", err)
	}
	if err := db.UpsertChartMeta(database, &models.ChartMeta{
		Fingerprint: testFP, TotalNotes: 450,
	}); err != nil {
		t.Fatalf("seeding chart meta: %v", err)
	}

	events, err := svc.BackfillFullCombos(context.Background())
	if err != nil {
		t.Fatalf("BackfillFullCombos() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if !events[0].IsFirstFC {
		t.Errorf("IsFirstFC = false, want true (no earlier FC)")
	}
	if events[0].IsFCRecordBreak {
		t.Errorf("IsFCRecordBreak = true, want false (no earlier score)")
	}

	row, _ := db.GetUserScore(database, testFP, u.ID)
	if !row.IsFullCombo {
		t.Errorf("row not marked FC after backfill")
	}

	// Idempotence: a second run finds nothing.
	events, err = svc.BackfillFullCombos(context.Background())
	if err != nil {
		t.Fatalf("second BackfillFullCombos() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("second run events = %d, want 0", len(events))
	}
}

func TestBackfillSkipsIncompleteRuns(t *testing.T) {
	svc, database := newTestService(t)
	u := pairUser(t, database, "u1", "Player")

	// Full completion but fewer notes than the chart: not an FC.
	if err := db.UpsertScore(database, &models.Score{
		UserID: u.ID, Fingerprint: testFP, Score: 100000,
		CompletionPercent: 100, NotesTotal: intPtr(449),
		SubmittedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seeding score: %v", err)
	}
	if err := db.UpsertChartMeta(database, &models.ChartMeta{
		Fingerprint: testFP, TotalNotes: 450,
	}); err != nil {
		t.Fatalf("seeding chart meta: %v", err)
	}

	events, err := svc.BackfillFullCombos(context.Background())
	if err != nil {
		t.Fatalf("BackfillFullCombos() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}
}
