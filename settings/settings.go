// Package settings holds the server's policy document: a versioned JSON
// tree controlling announcements, display, API limits and logging. It is
// separate from process configuration; the chat side edits it at runtime
// and migrations carry user values across schema changes.
package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CurrentVersion is the settings schema version this build writes.
const CurrentVersion = 3

// BotVersion is stamped into the document on every save.
const BotVersion = "2.1.0"

// Settings is the loaded document. All access goes through dotted-path
// getters so callers never index the tree by hand.
type Settings struct {
	path   string
	logger *log.Logger

	mu  sync.RWMutex
	doc map[string]any
}

// Load reads the document at path. A missing file writes fully-populated
// defaults; a corrupt one is archived with a timestamp and regenerated; an
// old config_version is migrated forward with user values preserved.
func Load(path string, logger *log.Logger) (*Settings, error) {
	s := &Settings{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.doc = Defaults()
		if err := s.Save(); err != nil {
			return nil, fmt.Errorf("writing default settings: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		backup := fmt.Sprintf("%s.corrupt.%d", path, time.Now().Unix())
		if werr := os.WriteFile(backup, data, 0o644); werr != nil {
			logger.Printf("error archiving corrupt settings: %v", werr)
		} else {
			logger.Printf("settings file corrupt, archived to %s", filepath.Base(backup))
		}
		s.doc = Defaults()
		if err := s.Save(); err != nil {
			return nil, fmt.Errorf("regenerating settings: %w", err)
		}
		return s, nil
	}

	s.doc = doc
	if s.migrate() {
		if err := s.Save(); err != nil {
			return nil, fmt.Errorf("saving migrated settings: %w", err)
		}
	}
	return s, nil
}

// migrate runs every migration newer than the document's config_version,
// then fills missing keys from the defaults. Reports whether anything
// changed.
func (s *Settings) migrate() bool {
	version := intValue(s.doc["config_version"])
	if version >= CurrentVersion {
		return false
	}
	for _, m := range docMigrations {
		if m.version <= version {
			continue
		}
		m.apply(s.doc)
		s.logger.Printf("migrated settings to version %d", m.version)
	}
	deepFill(s.doc, Defaults())
	s.doc["config_version"] = CurrentVersion
	return true
}

// Save writes the document atomically and stamps last_updated and
// bot_version.
func (s *Settings) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc["last_updated"] = time.Now().UTC().Format(time.RFC3339)
	s.doc["bot_version"] = BotVersion

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Get resolves a dotted path ("announcements.record_breaks.style"),
// returning def when any segment is missing.
func (s *Settings) Get(path string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cur any = s.doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		cur, ok = m[seg]
		if !ok {
			return def
		}
	}
	return cur
}

// Set writes a dotted path, creating intermediate maps as needed. The
// caller persists with Save.
func (s *Settings) Set(path string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	segs := strings.Split(path, ".")
	cur := s.doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

func (s *Settings) GetString(path, def string) string {
	if v, ok := s.Get(path, def).(string); ok {
		return v
	}
	return def
}

func (s *Settings) GetBool(path string, def bool) bool {
	if v, ok := s.Get(path, def).(bool); ok {
		return v
	}
	return def
}

func (s *Settings) GetInt(path string, def int) int {
	switch v := s.Get(path, def).(type) {
	case int:
		return v
	case float64: // json numbers decode as float64
		return int(v)
	}
	return def
}

func (s *Settings) GetFloat(path string, def float64) float64 {
	switch v := s.Get(path, def).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// deepFill copies every default key missing from doc, recursing into
// nested maps. User-set values always win.
func deepFill(doc, defaults map[string]any) {
	for k, dv := range defaults {
		cv, ok := doc[k]
		if !ok {
			doc[k] = dv
			continue
		}
		cm, cok := cv.(map[string]any)
		dm, dok := dv.(map[string]any)
		if cok && dok {
			deepFill(cm, dm)
		}
	}
}

func deleteAt(doc map[string]any, path string) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

// docMigrations are additive: the deep fill after them supplies new
// defaults, so a migration only needs to delete or reshape obsolete keys.
var docMigrations = []struct {
	version int
	apply   func(doc map[string]any)
}{
	{
		// v2 introduced the full_combos category; the old single toggle
		// announcements.announce_fcs is folded into it.
		version: 2,
		apply: func(doc map[string]any) {
			ann, _ := doc["announcements"].(map[string]any)
			if ann == nil {
				return
			}
			if old, ok := ann["announce_fcs"].(bool); ok {
				ann["full_combos"] = map[string]any{"enabled": old}
			}
			deleteAt(doc, "announcements.announce_fcs")
		},
	},
	{
		// v3 replaced the flat nps_tiers list with difficulty_tiers.
		version: 3,
		apply: func(doc map[string]any) {
			deleteAt(doc, "nps_tiers")
		},
	},
}
