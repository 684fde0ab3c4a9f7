// Package songcache extracts a ChartID → title/path index from Clone
// Hero's songcache.bin. The cache layout is undocumented; decoding leans
// on one stable landmark: the byte string 0x0A "Clone Hero" 0x00 sits
// immediately before each entry's 16-byte chart id. Everything else is a
// best-effort scan, so entries without a recognizable path are skipped.
package songcache

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry is one recovered song: a display title derived from the path and
// the chart file path as stored by the game. Artist and album are not
// recoverable from the cache.
type Entry struct {
	Title string
	Path  string
}

var sentinel = []byte("\x0aClone Hero\x00")

// pathWindow bounds how far past a chart id we look for its path.
const pathWindow = 500

var pathMarkers = []string{":\\", "Songs\\", "songs\\"}

var pathSuffixes = []string{".sng", ".chart", ".mid"}

// Parse scans the raw cache blob and returns every entry whose path could
// be recovered, keyed by the 32-char lowercase hex chart id.
func Parse(data []byte) map[string]Entry {
	entries := make(map[string]Entry)
	off := 0
	for {
		i := bytes.Index(data[off:], sentinel)
		if i < 0 {
			break
		}
		idStart := off + i + len(sentinel)
		if idStart+16 > len(data) {
			break
		}
		chartID := hex.EncodeToString(data[idStart : idStart+16])
		off = idStart + 16

		window := data[off:min(off+pathWindow, len(data))]
		if path, ok := extractPath(window); ok {
			entries[chartID] = Entry{Title: titleFromPath(path), Path: path}
		}
	}
	return entries
}

// ParseFile reads and scans the cache file at path.
func ParseFile(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading song cache: %w", err)
	}
	return Parse(data), nil
}

// extractPath finds the first plausible filesystem path in the window: it
// starts at a drive separator or a Songs directory and ends at a chart
// file suffix or a NUL. No terminator inside the window means no path.
func extractPath(window []byte) (string, bool) {
	text := string(window)

	start := -1
	for _, marker := range pathMarkers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		if marker == ":\\" && idx > 0 {
			idx-- // include the drive letter
		}
		if start < 0 || idx < start {
			start = idx
		}
	}
	if start < 0 {
		return "", false
	}

	rest := text[start:]
	end := -1
	for _, suffix := range pathSuffixes {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			continue
		}
		stop := idx + len(suffix)
		if end < 0 || stop < end {
			end = stop
		}
	}
	if nul := strings.IndexByte(rest, 0x00); nul >= 0 && (end < 0 || nul < end) {
		end = nul
	}
	if end <= 0 {
		return "", false
	}
	return strings.ToValidUTF8(rest[:end], "�"), true
}

var titleCaser = cases.Title(language.Und)

// titleFromPath derives a display title from the path: the file stem with
// chart suffixes stripped, title-cased. Folder charts store their chart as
// notes.chart/notes.mid, so for those the song folder name is the stem.
func titleFromPath(path string) string {
	stem := path
	if i := strings.LastIndexAny(stem, "\\/"); i >= 0 {
		stem = stem[i+1:]
	}
	for _, suffix := range pathSuffixes {
		stem = strings.TrimSuffix(stem, suffix)
	}
	if strings.EqualFold(stem, "notes") {
		if i := strings.LastIndexAny(path, "\\/"); i > 0 {
			dir := path[:i]
			if j := strings.LastIndexAny(dir, "\\/"); j >= 0 {
				dir = dir[j+1:]
			}
			if dir != "" {
				stem = dir
			}
		}
	}
	stem = strings.ReplaceAll(stem, "_", " ")
	return titleCaser.String(strings.TrimSpace(stem))
}
