// Package scoring is the server's authoritative score classifier: each
// submission is persisted and classified as record break, first-time
// score, personal best or none inside one transaction, with full combo
// as an orthogonal flag.
package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fretwork/herald/db"
	"github.com/fretwork/herald/models"
)

// ErrUnauthorized means the auth token resolved to no user.
var ErrUnauthorized = errors.New("scoring: invalid auth token")

// fcCompletionFloor guards against float drift in the game's percent.
const fcCompletionFloor = 99.99

// Service classifies and persists submissions.
type Service struct {
	db     *db.DB
	logger *log.Logger
}

func NewService(database *db.DB, logger *log.Logger) *Service {
	return &Service{db: database, logger: logger}
}

// Request is one submission after HTTP decoding.
type Request struct {
	AuthToken         string
	Fingerprint       models.Fingerprint
	Score             int
	CompletionPercent float64
	Stars             int
	SongTitle         string
	SongArtist        string
	SongCharter       string
	NotesHit          *int
	NotesTotal        *int
	BestStreak        *int
	TotalNotesInChart *int
	NPS               float64
	PlayCount         int
}

// Result carries the full classification. RecordBreak, FirstTime and
// PersonalBest are mutually exclusive; the FC flags are orthogonal.
type Result struct {
	User *models.User

	IsHighScore      bool
	IsRecordBroken   bool
	IsFirstTimeScore bool
	IsPersonalBest   bool
	IsFullCombo      bool
	IsFirstFC        bool
	IsFCRecordBreak  bool

	PreviousScore       *int
	PreviousHolder      string
	PreviousHolderID    *int64
	PreviousSubmittedAt *time.Time
	YourBestScore       *int
	ServerRecord        int
}

// IsFullCombo applies the FC rule: every playable note hit and the
// game's completion metric effectively 100%.
func IsFullCombo(notesHit, totalNotesInChart *int, completion float64) bool {
	return notesHit != nil && totalNotesInChart != nil &&
		*notesHit == *totalNotesInChart && completion >= fcCompletionFloor
}

// SubmitScore runs the whole classification in one transaction: resolve
// the user, merge song metadata, classify against the server record and
// the user's own row, upsert, and append a record-break event if one
// happened.
func (s *Service) SubmitScore(ctx context.Context, req Request) (*Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := s.submitInTx(tx, req)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing submission: %w", err)
	}
	return result, nil
}

func (s *Service) submitInTx(tx *sql.Tx, req Request) (*Result, error) {
	user, err := userByToken(tx, req.AuthToken)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	if err := db.UpsertSong(tx, &models.Song{
		ChartID: req.Fingerprint.ChartID,
		Title:   req.SongTitle,
		Artist:  req.SongArtist,
		Charter: req.SongCharter,
	}); err != nil {
		return nil, fmt.Errorf("upserting song: %w", err)
	}

	if req.TotalNotesInChart != nil && *req.TotalNotesInChart > 0 {
		if err := db.UpsertChartMeta(tx, &models.ChartMeta{
			Fingerprint: req.Fingerprint,
			TotalNotes:  *req.TotalNotesInChart,
			NoteDensity: req.NPS,
			SongName:    req.SongTitle,
			Artist:      req.SongArtist,
			Charter:     req.SongCharter,
		}); err != nil {
			return nil, fmt.Errorf("upserting chart metadata: %w", err)
		}
	}

	result := &Result{User: user}
	result.IsFullCombo = IsFullCombo(req.NotesHit, req.TotalNotesInChart, req.CompletionPercent)

	record, holder, err := db.GetRecordScore(tx, req.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("reading server record: %w", err)
	}
	userScore, err := db.GetUserScore(tx, req.Fingerprint, user.ID)
	if err != nil {
		return nil, fmt.Errorf("reading user score: %w", err)
	}

	switch {
	case record == nil:
		result.IsFirstTimeScore = true
		result.ServerRecord = req.Score
	case req.Score > record.Score:
		result.IsRecordBroken = true
		result.ServerRecord = req.Score
		prev := record.Score
		result.PreviousScore = &prev
		result.PreviousHolder = holder
		result.PreviousHolderID = &record.UserID
		at := record.SubmittedAt
		result.PreviousSubmittedAt = &at
	default:
		result.ServerRecord = record.Score
		if userScore != nil && req.Score > userScore.Score {
			result.IsPersonalBest = true
			prev := userScore.Score
			result.PreviousScore = &prev
		}
	}

	result.IsHighScore = userScore == nil || req.Score > userScore.Score

	if result.IsFullCombo {
		fcCount, err := db.CountFullCombos(tx, req.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("counting full combos: %w", err)
		}
		result.IsFirstFC = fcCount == 0
		result.IsFCRecordBreak = result.IsRecordBroken
	}

	if err := db.UpsertScore(tx, &models.Score{
		UserID:            user.ID,
		Fingerprint:       req.Fingerprint,
		Score:             req.Score,
		CompletionPercent: req.CompletionPercent,
		Stars:             req.Stars,
		IsFullCombo:       result.IsFullCombo,
		NotesTotal:        req.NotesTotal,
		SubmittedAt:       time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("upserting score: %w", err)
	}

	if result.IsRecordBroken {
		if err := db.InsertRecordBreak(tx, &models.RecordBreak{
			UserID:           user.ID,
			Fingerprint:      req.Fingerprint,
			NewScore:         req.Score,
			PreviousScore:    result.PreviousScore,
			PreviousHolderID: result.PreviousHolderID,
			BrokenAt:         time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("recording record break: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE users SET last_seen = ? WHERE id = ?`,
		time.Now().UTC(), user.ID); err != nil {
		return nil, fmt.Errorf("touching last_seen: %w", err)
	}

	best := req.Score
	if userScore != nil && userScore.Score > best {
		best = userScore.Score
	}
	result.YourBestScore = &best

	return result, nil
}

func userByToken(q db.Queryer, token string) (*models.User, error) {
	user := &models.User{}
	err := q.QueryRow(`
	SELECT id, external_id, display_name, auth_token, created_at, last_seen
	FROM users WHERE auth_token = ?`, token).Scan(
		&user.ID, &user.ExternalID, &user.DisplayName,
		&user.AuthToken, &user.CreatedAt, &user.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
