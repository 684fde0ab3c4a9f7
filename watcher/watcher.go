// Package watcher turns writes to the game's score file into classified
// score events: new/improved scores are enriched and submitted, replays
// and no-op writes are reported, and a startup catch-up scan replays
// anything scored while the tracker was down.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fretwork/herald/metadata"
	"github.com/fretwork/herald/models"
	"github.com/fretwork/herald/scoredata"
	"github.com/fretwork/herald/scorestate"
	"github.com/fretwork/herald/submit"
)

const (
	// Writes within debounceWindow of the last processed event are the
	// same game-side save; skip them.
	debounceWindow = 2 * time.Second
	// After the window, give the game this long to finish writing.
	settleDelay = 500 * time.Millisecond
)

// EventKind classifies one observed change.
type EventKind int

const (
	// EventNewScore is a score the state store has never seen this high.
	EventNewScore EventKind = iota
	// EventNotImproved is a changed score at or below the stored best.
	EventNotImproved
	// EventNoopWrite is a file write that changed no score.
	EventNoopWrite
)

// Event is one classified change to the score file.
type Event struct {
	Kind         EventKind
	Record       scoredata.Record
	PreviousBest int // stored best, for EventNotImproved
	// Replayed marks catch-up and resync events: the score was not just
	// played, so the live now-playing export must not name it.
	Replayed bool
}

// Submitter posts one enriched score; *submit.Client in production.
type Submitter interface {
	SubmitScore(ctx context.Context, req submit.ScoreRequest) (*submit.ScoreResult, error)
}

// Watcher is the tracker's single-consumer processor. All classification,
// metadata resolution and submission happen on its loop, in file order.
type Watcher struct {
	scorePath string
	store     *scorestate.Store
	resolver  *metadata.Resolver
	client    Submitter
	logger    *log.Logger

	prev        map[string]int
	firstParse  bool
	lastHandled time.Time

	stop chan struct{}
	done chan struct{}
}

// New builds a watcher over the game's score file.
func New(scorePath string, store *scorestate.Store, resolver *metadata.Resolver, client Submitter, logger *log.Logger) *Watcher {
	return &Watcher{
		scorePath:  scorePath,
		store:      store,
		resolver:   resolver,
		client:     client,
		logger:     logger,
		prev:       make(map[string]int),
		firstParse: true,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run initializes state, performs the catch-up scan and then watches the
// score file until Stop is called.
func (w *Watcher) Run() error {
	defer close(w.done)

	records, err := scoredata.ParseFile(w.scorePath)
	if err != nil {
		w.logger.Printf("warning: score file not readable yet: %v", err)
	} else {
		w.prev = scoredata.Snapshot(records)
		w.firstParse = false
		if w.store.NeedsInitialization() {
			// First run or legacy migration: adopt the current file
			// wholesale without announcing historical scores.
			if err := w.store.InitializeFrom(records); err != nil {
				return fmt.Errorf("initializing state store: %w", err)
			}
			w.logger.Printf("state store initialized with %d fingerprints", w.store.Len())
		} else {
			w.catchUp(records)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directory: games replace the file on save, and a watch
	// on the old inode would go quiet after the first write.
	if err := fw.Add(filepath.Dir(w.scorePath)); err != nil {
		return fmt.Errorf("watching score directory: %w", err)
	}

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.scorePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if time.Since(w.lastHandled) < debounceWindow {
				continue
			}
			select {
			case <-time.After(settleDelay):
			case <-w.stop:
				return nil
			}
			w.lastHandled = time.Now()
			w.process()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("file watcher error: %v", err)
		case <-w.stop:
			return nil
		}
	}
}

// Stop shuts the loop down and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

// Resync re-runs the catch-up scan by hand, re-emitting anything the
// store still considers unseen (e.g. after transient submit failures).
func (w *Watcher) Resync() {
	records, err := scoredata.ParseFile(w.scorePath)
	if err != nil {
		w.logger.Printf("error decoding score file for resync: %v", err)
		return
	}
	w.catchUp(records)
}

// catchUp emits a new-score event for every record the store says is new
// or improved. Idempotent: handled scores are marked seen, so a second
// pass finds nothing.
func (w *Watcher) catchUp(records []scoredata.Record) {
	for _, rec := range records {
		if w.store.IsNewOrImproved(rec.Fingerprint, rec.Score) {
			w.handle(Event{Kind: EventNewScore, Record: rec, Replayed: true})
		}
	}
}

// process re-decodes the score file after a write and classifies what
// changed against the previous snapshot and the state store.
func (w *Watcher) process() {
	records, err := scoredata.ParseFile(w.scorePath)
	if err != nil {
		w.logger.Printf("error decoding score file: %v", err)
		return
	}

	events := w.classify(records)
	for _, ev := range events {
		w.handle(ev)
	}

	w.prev = scoredata.Snapshot(records)
	w.firstParse = false
}

// classify compares the fresh decode against the in-memory snapshot (did
// anything change?) and the persistent store (is it an improvement?).
func (w *Watcher) classify(records []scoredata.Record) []Event {
	var events []Event
	changed := false
	for _, rec := range records {
		prev, existed := w.prev[rec.Fingerprint.Key()]
		if existed && prev == rec.Score {
			continue
		}
		changed = true
		if w.store.IsNewOrImproved(rec.Fingerprint, rec.Score) {
			events = append(events, Event{Kind: EventNewScore, Record: rec})
			continue
		}
		// First parse after startup replays the whole file as "changed";
		// suppress the not-improved noise there.
		if w.firstParse {
			continue
		}
		best, _ := w.store.Best(rec.Fingerprint)
		events = append(events, Event{Kind: EventNotImproved, Record: rec, PreviousBest: best})
	}
	if !changed && !w.firstParse {
		events = append(events, Event{Kind: EventNoopWrite})
	}
	return events
}

// handle is the single consumer's terminal step: resolve metadata,
// submit, update the store, clear the now-playing cache, and print one
// summary line.
func (w *Watcher) handle(ev Event) {
	switch ev.Kind {
	case EventNoopWrite:
		w.logger.Printf("score file written with no score changes")
		return
	case EventNotImproved:
		delta := ev.PreviousBest - ev.Record.Score
		w.logger.Printf("%s %s: %d did not beat personal best %d (-%d)",
			ev.Record.Fingerprint.ShortID(), trackLabel(ev.Record.Fingerprint),
			ev.Record.Score, ev.PreviousBest, delta)
		return
	}

	rec := ev.Record
	var res *metadata.Resolved
	if ev.Replayed {
		res = w.resolver.ResolveStored(rec.Fingerprint)
	} else {
		res = w.resolver.Resolve(rec.Fingerprint)
	}

	req := submit.ScoreRequest{
		ChartHash:         rec.ChartID,
		InstrumentID:      int(rec.Instrument),
		DifficultyID:      int(rec.Difficulty),
		Score:             rec.Score,
		CompletionPercent: rec.CompletionPercent(),
		Stars:             rec.Stars,
		SongTitle:         res.Title,
		SongArtist:        res.Artist,
		SongCharter:       res.Charter,
		ScoreType:         "raw",
		NPS:               res.NPS,
		PlayCount:         rec.PlayCount,
	}
	if res.Rich {
		req.ScoreType = "rich"
	}
	if res.TotalNotes > 0 {
		total := res.TotalNotes
		req.NotesTotal = &total
		req.TotalNotesInChart = &total
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	result, err := w.client.SubmitScore(ctx, req)
	switch {
	case errors.Is(err, submit.ErrUnauthorized):
		// Retrying cannot help without re-pairing; don't re-emit forever.
		w.logger.Printf("submission rejected (401): re-pair the tracker with the bot")
		w.markSeen(rec)
		w.clearLive(ev)
		return
	case err != nil:
		// Transient: leave the store unmarked and the now-playing cache
		// intact, so the re-emitted score still resolves with live
		// metadata.
		w.logger.Printf("error submitting score for %s: %v", res.DisplayTitle(rec.Fingerprint), err)
		return
	}

	w.markSeen(rec)
	w.clearLive(ev)
	w.logger.Printf("%s [%s] %d pts: %s", res.DisplayTitle(rec.Fingerprint),
		trackLabel(rec.Fingerprint), rec.Score, summarize(result))
}

// clearLive consumes the now-playing cache once a live score event is
// fully handled. Replayed events never touch it.
func (w *Watcher) clearLive(ev Event) {
	if !ev.Replayed {
		w.resolver.NowPlaying.Clear()
	}
}

func (w *Watcher) markSeen(rec scoredata.Record) {
	if err := w.store.MarkSeen(rec.Fingerprint, rec.Score); err != nil {
		w.logger.Printf("error persisting state store: %v", err)
	}
}

const submitTimeout = 5 * time.Second

func trackLabel(fp models.Fingerprint) string {
	return fmt.Sprintf("%s %s", fp.Difficulty, fp.Instrument)
}

// summarize renders the one-line category summary with counter-party
// info.
func summarize(r *submit.ScoreResult) string {
	switch {
	case r.IsRecordBroken:
		s := "SERVER RECORD"
		if r.PreviousHolder != nil && r.PreviousScore != nil {
			s += fmt.Sprintf(" (previous: %d by %s)", *r.PreviousScore, *r.PreviousHolder)
		}
		return s
	case r.IsFirstTimeScore:
		return "first score on this chart"
	case r.IsPersonalBest:
		if r.PreviousScore != nil {
			return fmt.Sprintf("personal best (previous: %d)", *r.PreviousScore)
		}
		return "personal best"
	default:
		if r.YourBestScore != nil {
			return fmt.Sprintf("recorded (your best: %d)", *r.YourBestScore)
		}
		return "recorded"
	}
}
