package scorestate

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fretwork/herald/models"
	"github.com/fretwork/herald/scoredata"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var fpA = models.Fingerprint{ChartID: "00112233445566778899aabbccddeeff", Instrument: models.Lead, Difficulty: models.Expert}
var fpB = models.Fingerprint{ChartID: "a1b2c3d4e5f60718293a4b5c6d7e8f90", Instrument: models.Drums, Difficulty: models.Hard}

func TestLoadMissingFlagsInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.NeedsInitialization() {
		t.Errorf("missing file should flag initialization")
	}
	if !s.IsNewOrImproved(fpA, 1) {
		t.Errorf("empty store should treat everything as new")
	}
}

func TestMarkSeenMonotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Any interleaving of MarkSeen calls must leave the maximum.
	for _, score := range []int{100, 500, 300, 500, 50} {
		if err := s.MarkSeen(fpA, score); err != nil {
			t.Fatalf("MarkSeen(%d) error = %v", score, err)
		}
	}
	if best, ok := s.Best(fpA); !ok || best != 500 {
		t.Errorf("Best() = %d, %v, want 500", best, ok)
	}
	if s.IsNewOrImproved(fpA, 500) {
		t.Errorf("equal score should not count as improved")
	}
	if !s.IsNewOrImproved(fpA, 501) {
		t.Errorf("higher score should count as improved")
	}

	// Persistence round-trip.
	s2, err := Load(path, discard())
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if s2.NeedsInitialization() {
		t.Errorf("loaded store should not flag initialization")
	}
	if best, ok := s2.Best(fpA); !ok || best != 500 {
		t.Errorf("reloaded Best() = %d, %v, want 500", best, ok)
	}
}

func TestInitializeFromReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.MarkSeen(fpA, 999999); err != nil {
		t.Fatalf("MarkSeen() error = %v", err)
	}

	records := []scoredata.Record{
		{Fingerprint: fpB, Score: 42},
	}
	if err := s.InitializeFrom(records); err != nil {
		t.Fatalf("InitializeFrom() error = %v", err)
	}
	if _, ok := s.Best(fpA); ok {
		t.Errorf("InitializeFrom should drop old entries")
	}
	if best, ok := s.Best(fpB); !ok || best != 42 {
		t.Errorf("Best(fpB) = %d, %v, want 42", best, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestLegacyFormatFlagsInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := map[string]any{
		"known_scores": []any{"a:0:3", "b:4:2"},
	}
	data, _ := json.Marshal(legacy)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing legacy file: %v", err)
	}

	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.NeedsInitialization() {
		t.Errorf("legacy format should flag initialization")
	}
	if s.Len() != 0 {
		t.Errorf("legacy entries should be discarded, Len() = %d", s.Len())
	}
}

func TestCorruptFileArchived(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte(`{"score_values": {`), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.NeedsInitialization() {
		t.Errorf("corrupt file should flag initialization")
	}

	entries, _ := os.ReadDir(dir)
	archived := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt.") {
			archived = true
		}
	}
	if !archived {
		t.Errorf("corrupt file was not archived")
	}
}
