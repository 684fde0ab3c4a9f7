package db

import (
	"database/sql"
	"time"

	"github.com/fretwork/herald/models"
)

// Queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Score operations take it so the submission classifier can run them
// inside its transaction while batch jobs run them directly.
type Queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func scanScore(row *sql.Row) (*models.Score, error) {
	s := &models.Score{}
	err := row.Scan(&s.ID, &s.UserID, &s.ChartID, &s.Instrument, &s.Difficulty,
		&s.Score, &s.CompletionPercent, &s.Stars, &s.IsFullCombo,
		&s.NotesTotal, &s.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

const scoreColumns = `id, user_id, chart_id, instrument, difficulty,
	score, completion_percent, stars, is_full_combo, notes_total, submitted_at`

// GetRecordScore returns the highest score over a fingerprint across all
// users, with the holder's display name, or (nil, "", nil) when nobody
// has played it.
func GetRecordScore(q Queryer, fp models.Fingerprint) (*models.Score, string, error) {
	s := &models.Score{}
	var holder string
	err := q.QueryRow(`
	SELECT s.id, s.user_id, s.chart_id, s.instrument, s.difficulty,
		s.score, s.completion_percent, s.stars, s.is_full_combo, s.notes_total,
		s.submitted_at, u.display_name
	FROM scores s JOIN users u ON u.id = s.user_id
	WHERE s.chart_id = ? AND s.instrument = ? AND s.difficulty = ?
	ORDER BY s.score DESC, s.submitted_at ASC
	LIMIT 1`, fp.ChartID, int(fp.Instrument), int(fp.Difficulty)).Scan(
		&s.ID, &s.UserID, &s.ChartID, &s.Instrument, &s.Difficulty,
		&s.Score, &s.CompletionPercent, &s.Stars, &s.IsFullCombo, &s.NotesTotal,
		&s.SubmittedAt, &holder)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return s, holder, nil
}

// GetUserScore returns one user's stored best for a fingerprint, or
// (nil, nil) when they have none.
func GetUserScore(q Queryer, fp models.Fingerprint, userID int64) (*models.Score, error) {
	return scanScore(q.QueryRow(`
	SELECT `+scoreColumns+`
	FROM scores
	WHERE chart_id = ? AND instrument = ? AND difficulty = ? AND user_id = ?`,
		fp.ChartID, int(fp.Instrument), int(fp.Difficulty), userID))
}

// UpsertScore inserts the user's row for a fingerprint or, on conflict,
// overwrites it only when the incoming score is strictly greater. The
// stored row therefore always holds the user's best.
func UpsertScore(q Queryer, s *models.Score) error {
	_, err := q.Exec(`
	INSERT INTO scores (user_id, chart_id, instrument, difficulty, score,
		completion_percent, stars, is_full_combo, notes_total, submitted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chart_id, instrument, difficulty, user_id) DO UPDATE SET
		score = excluded.score,
		completion_percent = excluded.completion_percent,
		stars = excluded.stars,
		is_full_combo = excluded.is_full_combo,
		notes_total = COALESCE(excluded.notes_total, scores.notes_total),
		submitted_at = excluded.submitted_at
	WHERE excluded.score > scores.score`,
		s.UserID, s.ChartID, int(s.Instrument), int(s.Difficulty), s.Score,
		s.CompletionPercent, s.Stars, s.IsFullCombo, s.NotesTotal, s.SubmittedAt)
	return err
}

// InsertRecordBreak appends one record-break event row.
func InsertRecordBreak(q Queryer, rb *models.RecordBreak) error {
	_, err := q.Exec(`
	INSERT INTO record_breaks (user_id, chart_id, instrument, difficulty,
		new_score, previous_score, previous_holder_id, broken_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rb.UserID, rb.ChartID, int(rb.Instrument), int(rb.Difficulty),
		rb.NewScore, rb.PreviousScore, rb.PreviousHolderID, rb.BrokenAt)
	return err
}

// CountFullCombos counts FC rows for a fingerprint across all users.
func CountFullCombos(q Queryer, fp models.Fingerprint) (int, error) {
	var n int
	err := q.QueryRow(`
	SELECT COUNT(*) FROM scores
	WHERE chart_id = ? AND instrument = ? AND difficulty = ? AND is_full_combo = 1`,
		fp.ChartID, int(fp.Instrument), int(fp.Difficulty)).Scan(&n)
	return n, err
}

// CountEarlierFullCombos counts FC rows for a fingerprint submitted
// strictly before t. Used by the retroactive backfill to decide first-FC.
func CountEarlierFullCombos(q Queryer, fp models.Fingerprint, t time.Time) (int, error) {
	var n int
	err := q.QueryRow(`
	SELECT COUNT(*) FROM scores
	WHERE chart_id = ? AND instrument = ? AND difficulty = ?
		AND is_full_combo = 1 AND submitted_at < ?`,
		fp.ChartID, int(fp.Instrument), int(fp.Difficulty), t).Scan(&n)
	return n, err
}

// BestEarlierScore returns the highest score for a fingerprint submitted
// strictly before t, or (nil, nil).
func BestEarlierScore(q Queryer, fp models.Fingerprint, t time.Time) (*models.Score, error) {
	return scanScore(q.QueryRow(`
	SELECT `+scoreColumns+`
	FROM scores
	WHERE chart_id = ? AND instrument = ? AND difficulty = ? AND submitted_at < ?
	ORDER BY score DESC LIMIT 1`,
		fp.ChartID, int(fp.Instrument), int(fp.Difficulty), t))
}

// MarkFullCombo flips the FC flag on one score row.
func MarkFullCombo(q Queryer, scoreID int64) error {
	_, err := q.Exec(`UPDATE scores SET is_full_combo = 1 WHERE id = ?`, scoreID)
	return err
}

// BackfillCandidate is one stored score joined with its chart-parse total
// for re-checking the full-combo rule.
type BackfillCandidate struct {
	Score      models.Score
	TotalNotes int
}

// FullComboCandidates lists every score row that has a recorded
// notes_total and a matching chart_metadata row but is not yet marked FC.
func FullComboCandidates(q Queryer) ([]BackfillCandidate, error) {
	rows, err := q.Query(`
	SELECT s.id, s.user_id, s.chart_id, s.instrument, s.difficulty,
		s.score, s.completion_percent, s.stars, s.is_full_combo, s.notes_total,
		s.submitted_at, m.total_notes
	FROM scores s
	JOIN chart_metadata m ON m.chart_id = s.chart_id
		AND m.instrument = s.instrument AND m.difficulty = s.difficulty
	WHERE s.notes_total IS NOT NULL AND s.is_full_combo = 0 AND m.total_notes > 0
	ORDER BY s.submitted_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BackfillCandidate
	for rows.Next() {
		var c BackfillCandidate
		s := &c.Score
		if err := rows.Scan(&s.ID, &s.UserID, &s.ChartID, &s.Instrument,
			&s.Difficulty, &s.Score, &s.CompletionPercent, &s.Stars,
			&s.IsFullCombo, &s.NotesTotal, &s.SubmittedAt, &c.TotalNotes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActivityCount is one user's submission count within a window.
type ActivityCount struct {
	UserID      int64
	DisplayName string
	Scores      int
}

// ActivitySince counts submissions per user since t, busiest first.
func (db *DB) ActivitySince(t time.Time) ([]ActivityCount, error) {
	rows, err := db.Query(`
	SELECT u.id, u.display_name, COUNT(*) AS n
	FROM scores s JOIN users u ON u.id = s.user_id
	WHERE s.submitted_at >= ?
	GROUP BY u.id, u.display_name
	ORDER BY n DESC, u.display_name`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityCount
	for rows.Next() {
		var a ActivityCount
		if err := rows.Scan(&a.UserID, &a.DisplayName, &a.Scores); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
