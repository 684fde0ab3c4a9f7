package settings

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.GetInt("config_version", 0); got != CurrentVersion {
		t.Errorf("config_version = %d, want %d", got, CurrentVersion)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults were not written: %v", err)
	}

	// Reload reads the same document back.
	s2, err := Load(path, discard())
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got := s2.GetString("announcements.record_breaks.embed_color", ""); got != "#FFD700" {
		t.Errorf("record_breaks.embed_color = %q, want #FFD700", got)
	}
}

func TestLoadArchivesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.GetInt("config_version", 0); got != CurrentVersion {
		t.Errorf("config_version = %d, want %d", got, CurrentVersion)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	archived := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt.") {
			archived = true
		}
	}
	if !archived {
		t.Errorf("corrupt file was not archived; dir has %v", entries)
	}
}

func TestMigrationPreservesUserValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	old := map[string]any{
		"config_version": 1,
		"display": map[string]any{
			"timezone": "Europe/Berlin", // user-set, must survive
		},
		"announcements": map[string]any{
			"announce_fcs": true, // obsolete key folded by the v2 migration
			"record_breaks": map[string]any{
				"embed_color": "#123456", // user-set
			},
		},
		"nps_tiers": []any{1, 2, 3}, // deleted by the v3 migration
	}
	data, _ := json.Marshal(old)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing old settings: %v", err)
	}

	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := s.GetString("display.timezone", ""); got != "Europe/Berlin" {
		t.Errorf("user timezone = %q, want Europe/Berlin", got)
	}
	if got := s.GetString("announcements.record_breaks.embed_color", ""); got != "#123456" {
		t.Errorf("user embed_color = %q, want #123456", got)
	}
	// New default keys must be filled in.
	if got := s.GetString("announcements.record_breaks.style", ""); got != "full" {
		t.Errorf("filled default style = %q, want full", got)
	}
	if got := s.GetBool("announcements.full_combos.enabled", false); !got {
		t.Errorf("folded announce_fcs = false, want true")
	}
	if v := s.Get("announcements.announce_fcs", nil); v != nil {
		t.Errorf("obsolete key survived: %v", v)
	}
	if v := s.Get("nps_tiers", nil); v != nil {
		t.Errorf("deleted key survived: %v", v)
	}
	if got := s.GetInt("config_version", 0); got != CurrentVersion {
		t.Errorf("config_version = %d, want %d", got, CurrentVersion)
	}
}

func TestGetSetDottedPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		path string
		def  any
		want any
	}{
		{"announcements.record_breaks.style", "", "full"},
		{"announcements.personal_bests.min_improvement_points", 0, 1000},
		{"api.rate_limiting.enabled", false, true},
		{"no.such.path", "fallback", "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var got any
			switch want := tt.want.(type) {
			case string:
				got = s.GetString(tt.path, tt.def.(string))
				_ = want
			case int:
				got = s.GetInt(tt.path, tt.def.(int))
			case bool:
				got = s.GetBool(tt.path, tt.def.(bool))
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	s.Set("announcements.record_breaks.style", "minimalist")
	if got := s.GetString("announcements.record_breaks.style", ""); got != "minimalist" {
		t.Errorf("after Set, style = %q, want minimalist", got)
	}
	s.Set("brand.new.key", 42)
	if got := s.GetInt("brand.new.key", 0); got != 42 {
		t.Errorf("after Set, new key = %d, want 42", got)
	}
}

func TestTypedViews(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ann := s.Announcements()
	if !ann.RecordBreaks.Enabled || ann.RecordBreaks.EmbedColor != "#FFD700" {
		t.Errorf("RecordBreaks view = %+v", ann.RecordBreaks)
	}
	if !ann.RecordBreaks.Full.PreviousRecord {
		t.Errorf("record_breaks full palette should enable previous_record")
	}
	if ann.PersonalBests.Style != "minimalist" || ann.PersonalBests.MinImprovementPoints != 1000 {
		t.Errorf("PersonalBests view = %+v", ann.PersonalBests)
	}
	if got := ann.PersonalBests.Palette(); got != ann.PersonalBests.Minimalist {
		t.Errorf("Palette() did not follow style")
	}
	if ann.AccuracyDisplay.FullCombos.Format != "notes_only" {
		t.Errorf("accuracy_display.full_combos = %+v", ann.AccuracyDisplay.FullCombos)
	}

	tiers := s.Tiers()
	if tier, ok := tiers.ForNPS(7.5); !ok || tier.Name != "Intense" {
		t.Errorf("ForNPS(7.5) = %+v, %v, want Intense", tier, ok)
	}
	if _, ok := tiers.ForNPS(500); ok {
		t.Errorf("ForNPS(500) matched, want none")
	}
}

func TestSaveStampsMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := s.GetString("bot_version", ""); got != BotVersion {
		t.Errorf("bot_version = %q, want %q", got, BotVersion)
	}
	if got := s.GetString("last_updated", ""); got == "" {
		t.Errorf("last_updated not stamped")
	}
}
