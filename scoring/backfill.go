package scoring

import (
	"context"
	"fmt"

	"github.com/fretwork/herald/db"
	"github.com/fretwork/herald/models"
)

// RetroFC is one full combo detected after the fact.
type RetroFC struct {
	Score           models.Score
	IsFirstFC       bool
	IsFCRecordBreak bool
}

// BackfillFullCombos re-checks every stored score that has a recorded
// notes_total against the parsed chart totals and marks the full combos
// the live path missed. Idempotent: already-marked rows are excluded
// from the candidate set, so a second run finds nothing.
func (s *Service) BackfillFullCombos(ctx context.Context) ([]RetroFC, error) {
	candidates, err := db.FullComboCandidates(s.db)
	if err != nil {
		return nil, fmt.Errorf("listing backfill candidates: %w", err)
	}

	var events []RetroFC
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return events, ctx.Err()
		default:
		}

		if !IsFullCombo(c.Score.NotesTotal, &c.TotalNotes, c.Score.CompletionPercent) {
			continue
		}

		// First-FC and record-break status are judged as of the original
		// submission time, not now.
		earlier, err := db.CountEarlierFullCombos(s.db, c.Score.Fingerprint, c.Score.SubmittedAt)
		if err != nil {
			return events, fmt.Errorf("counting earlier FCs: %w", err)
		}
		best, err := db.BestEarlierScore(s.db, c.Score.Fingerprint, c.Score.SubmittedAt)
		if err != nil {
			return events, fmt.Errorf("reading earlier best: %w", err)
		}

		if err := db.MarkFullCombo(s.db, c.Score.ID); err != nil {
			return events, fmt.Errorf("marking full combo: %w", err)
		}

		ev := RetroFC{
			Score:           c.Score,
			IsFirstFC:       earlier == 0,
			IsFCRecordBreak: best != nil && c.Score.Score > best.Score,
		}
		ev.Score.IsFullCombo = true
		events = append(events, ev)
		s.logger.Printf("retroactive full combo: user %d on %s (%d notes)",
			c.Score.UserID, c.Score.Fingerprint.ShortID(), c.TotalNotes)
	}
	return events, nil
}
