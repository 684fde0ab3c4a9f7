package announce

import (
	"github.com/fretwork/herald/scoring"
)

// EventsFromSubmission maps one classified submission onto its
// announcement events. The category event comes first; a full combo adds
// a second, independent event, since FC status is orthogonal to the
// categories.
func EventsFromSubmission(req scoring.Request, res *scoring.Result) []Event {
	base := Event{
		UserName:          res.User.DisplayName,
		Fingerprint:       req.Fingerprint,
		Score:             req.Score,
		Stars:             req.Stars,
		CompletionPercent: req.CompletionPercent,
		PlayCount:         req.PlayCount,
		BestStreak:        req.BestStreak,
		NotesHit:          req.NotesHit,
		NotesTotal:        req.TotalNotesInChart,
		NPS:               req.NPS,
		Title:             req.SongTitle,
		Artist:            req.SongArtist,
		Charter:           req.SongCharter,
		ServerRecord:      res.ServerRecord,
	}

	var events []Event
	switch {
	case res.IsRecordBroken:
		ev := base
		ev.Category = RecordBreak
		ev.PreviousScore = res.PreviousScore
		ev.PreviousHolder = res.PreviousHolder
		ev.PreviousSubmittedAt = res.PreviousSubmittedAt
		events = append(events, ev)
	case res.IsFirstTimeScore:
		ev := base
		ev.Category = FirstTime
		events = append(events, ev)
	case res.IsPersonalBest:
		ev := base
		ev.Category = PersonalBest
		ev.PreviousScore = res.PreviousScore
		events = append(events, ev)
	}

	if res.IsFullCombo {
		ev := base
		ev.Category = FullCombo
		ev.IsFirstFC = res.IsFirstFC
		ev.IsFCRecordBreak = res.IsFCRecordBreak
		events = append(events, ev)
	}
	return events
}

// EventFromRetroFC maps one backfill detection onto its announcement
// event. Naming comes from whatever the chart metadata recorded; callers
// with richer song data fill Title/Artist/Charter afterwards.
func EventFromRetroFC(userName string, fc scoring.RetroFC) Event {
	return Event{
		Category:          FullCombo,
		UserName:          userName,
		Fingerprint:       fc.Score.Fingerprint,
		Score:             fc.Score.Score,
		Stars:             fc.Score.Stars,
		CompletionPercent: fc.Score.CompletionPercent,
		NotesHit:          fc.Score.NotesTotal,
		NotesTotal:        fc.Score.NotesTotal,
		IsFirstFC:         fc.IsFirstFC,
		IsFCRecordBreak:   fc.IsFCRecordBreak,
		IsRetroactive:     true,
	}
}
