package chart

import (
	"crypto/md5"
	"encoding/hex"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Finder resolves a chart id to its chart file. The game never exposes the
// path for an id, so the only correlation is brute force: hash every
// notes.chart/notes.mid under the songs roots with MD5 and compare against
// the requested id, exact or on the 8-char prefix. Hits and misses are
// both cached for the process lifetime.
type Finder struct {
	roots  []string
	logger *log.Logger

	mu    sync.Mutex
	cache map[string]string // md5 hex or requested id → path; "" marks a miss
}

// NewFinder builds a Finder over the configured songs roots.
func NewFinder(roots []string, logger *log.Logger) *Finder {
	return &Finder{
		roots:  roots,
		logger: logger,
		cache:  make(map[string]string),
	}
}

var chartFileNames = map[string]bool{
	"notes.chart": true,
	"notes.mid":   true,
	"notes.midi":  true,
}

// Find returns the chart file for id, scanning the songs roots on a cache
// miss. A miss after a full scan is cached negatively so unknown ids never
// trigger repeated scans.
func (f *Finder) Find(id string) (string, bool) {
	id = strings.ToLower(id)
	f.mu.Lock()
	defer f.mu.Unlock()

	if path, ok := f.lookupLocked(id); ok {
		return path, path != ""
	}

	path := f.scanLocked(id)
	if path == "" {
		f.cache[id] = ""
		return "", false
	}
	return path, true
}

func (f *Finder) lookupLocked(id string) (string, bool) {
	if path, ok := f.cache[id]; ok {
		return path, true
	}
	if len(id) >= 8 {
		prefix := id[:8]
		for hash, path := range f.cache {
			if path != "" && strings.HasPrefix(hash, prefix) {
				return path, true
			}
		}
	}
	return "", false
}

// scanLocked walks every songs root hashing chart files until one matches
// id. Every hash computed on the way is cached, so later lookups usually
// never reach the filesystem.
func (f *Finder) scanLocked(id string) string {
	start := time.Now()
	prefix := ""
	if len(id) >= 8 {
		prefix = id[:8]
	}

	var match string
	hashed := 0
	for _, root := range f.roots {
		if match != "" {
			break
		}
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if !chartFileNames[strings.ToLower(d.Name())] {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			sum := md5.Sum(data)
			hash := hex.EncodeToString(sum[:])
			hashed++
			if _, ok := f.cache[hash]; !ok {
				f.cache[hash] = path
			}
			if hash == id || (prefix != "" && strings.HasPrefix(hash, prefix)) {
				match = path
				return fs.SkipAll
			}
			return nil
		})
	}

	if f.logger != nil {
		f.logger.Printf("chart scan for %s hashed %d files in %s (found=%v)",
			id, hashed, time.Since(start).Round(time.Millisecond), match != "")
	}
	return match
}
