package models

import (
	"fmt"
	"time"
)

// Fingerprint is the triple under which a player holds at most one best
// score: the game's opaque 16-byte chart id (32-char lowercase hex) plus
// instrument and difficulty.
type Fingerprint struct {
	ChartID    string     `json:"chart_id"`
	Instrument Instrument `json:"instrument"`
	Difficulty Difficulty `json:"difficulty"`
}

// Key renders the fingerprint in the "<chartId>:<instr>:<diff>" form used
// by the client state file.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s:%d:%d", f.ChartID, int(f.Instrument), int(f.Difficulty))
}

// ShortID is the bracketed display fallback when no metadata resolved.
func (f Fingerprint) ShortID() string {
	if len(f.ChartID) >= 8 {
		return "[" + f.ChartID[:8] + "]"
	}
	return "[" + f.ChartID + "]"
}

// Score is one user's stored best for a fingerprint.
type Score struct {
	ID     int64
	UserID int64
	Fingerprint
	Score             int
	CompletionPercent float64
	Stars             int
	IsFullCombo       bool
	NotesTotal        *int // from chart parse; nil when never resolved
	SubmittedAt       time.Time
}

// RecordBreak is an append-only event row: somebody took the server
// record for a fingerprint.
type RecordBreak struct {
	ID     int64
	UserID int64
	Fingerprint
	NewScore         int
	PreviousScore    *int
	PreviousHolderID *int64
	BrokenAt         time.Time
}
