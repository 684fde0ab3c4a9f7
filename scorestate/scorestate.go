// Package scorestate persists the tracker's fingerprint→best-score map
// next to the game's score file, so restarts can tell new and improved
// scores from replays. Writes are whole-file atomic; a torn write can
// never produce a parseable-but-truncated document.
package scorestate

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fretwork/herald/models"
	"github.com/fretwork/herald/scoredata"
)

// document is the on-disk shape. legacy installs wrote known_scores as a
// list; its presence flags a reinitialization.
type document struct {
	ScoreValues map[string]int `json:"score_values"`
	LastUpdated int64          `json:"last_updated"`
	KnownScores []any          `json:"known_scores,omitempty"`
}

// Store is the loaded state. All methods are safe for one goroutine; the
// watcher's single consumer is the only writer.
type Store struct {
	path   string
	logger *log.Logger

	values    map[string]int
	needsInit bool
}

// Load reads the state file. A missing file, a legacy-format file or a
// corrupt file all yield an empty store flagged for initialization from
// the game's current score file; a corrupt file is archived first.
func Load(path string, logger *log.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger, values: make(map[string]int)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.needsInit = true
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		backup := fmt.Sprintf("%s.corrupt.%d", path, time.Now().Unix())
		if werr := os.WriteFile(backup, data, 0o644); werr != nil {
			logger.Printf("error archiving corrupt state file: %v", werr)
		} else {
			logger.Printf("state file corrupt, archived to %s", filepath.Base(backup))
		}
		s.needsInit = true
		return s, nil
	}

	if doc.KnownScores != nil {
		logger.Printf("legacy state format detected, reinitializing from the game's score file")
		s.needsInit = true
		return s, nil
	}

	if doc.ScoreValues != nil {
		s.values = doc.ScoreValues
	} else {
		s.needsInit = true
	}
	return s, nil
}

// NeedsInitialization reports whether the store must be rebuilt from the
// game's current score file before the watcher starts classifying.
func (s *Store) NeedsInitialization() bool {
	return s.needsInit
}

// IsNewOrImproved reports whether score beats everything seen for fp.
func (s *Store) IsNewOrImproved(fp models.Fingerprint, score int) bool {
	stored, ok := s.values[fp.Key()]
	return !ok || stored < score
}

// Best returns the stored best for fp and whether one exists.
func (s *Store) Best(fp models.Fingerprint) (int, bool) {
	v, ok := s.values[fp.Key()]
	return v, ok
}

// MarkSeen records score for fp, keeping the maximum, and persists.
func (s *Store) MarkSeen(fp models.Fingerprint, score int) error {
	key := fp.Key()
	if stored, ok := s.values[key]; ok && stored >= score {
		return nil
	}
	s.values[key] = score
	return s.save()
}

// InitializeFrom replaces the whole map from the game's score records and
// persists. Used on first run and after legacy-format migration.
func (s *Store) InitializeFrom(records []scoredata.Record) error {
	s.values = scoredata.Snapshot(records)
	s.needsInit = false
	return s.save()
}

// Len reports how many fingerprints the store tracks.
func (s *Store) Len() int {
	return len(s.values)
}

func (s *Store) save() error {
	doc := document{
		ScoreValues: s.values,
		LastUpdated: time.Now().Unix(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
