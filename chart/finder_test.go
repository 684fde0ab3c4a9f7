package chart

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeChart(t *testing.T, root, song, name, content string) (path, hash string) {
	t.Helper()
	dir := filepath.Join(root, song)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path = filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum := md5.Sum([]byte(content))
	return path, hex.EncodeToString(sum[:])
}

func TestFinderFindsByHash(t *testing.T) {
	root := t.TempDir()
	pathA, hashA := writeChart(t, root, "Song A", "notes.chart", "[Song]\n{\n}\n")
	pathB, hashB := writeChart(t, root, "Song B", "notes.mid", "MThd fake body")
	writeChart(t, root, "Song C", "album.png", "not a chart")

	f := NewFinder([]string{root}, nil)

	if got, ok := f.Find(hashA); !ok || got != pathA {
		t.Errorf("Find(%s) = %q/%v, want %q", hashA, got, ok, pathA)
	}
	if got, ok := f.Find(hashB); !ok || got != pathB {
		t.Errorf("Find(%s) = %q/%v, want %q", hashB, got, ok, pathB)
	}
	if got, ok := f.Find(strings.ToUpper(hashA)); !ok || got != pathA {
		t.Errorf("Find(upper) = %q/%v, want %q", got, ok, pathA)
	}
}

func TestFinderPrefixMatch(t *testing.T) {
	root := t.TempDir()
	pathA, hashA := writeChart(t, root, "Song A", "notes.chart", "prefix target")

	f := NewFinder([]string{root}, nil)

	// A full-length id that only agrees on the first 8 hex chars still hits.
	id := hashA[:8] + strings.Repeat("0", 24)
	if got, ok := f.Find(id); !ok || got != pathA {
		t.Errorf("Find(prefix id) = %q/%v, want %q", got, ok, pathA)
	}
}

func TestFinderCachesNegativeLookups(t *testing.T) {
	root := t.TempDir()
	writeChart(t, root, "Song A", "notes.chart", "whatever")

	var buf bytes.Buffer
	f := NewFinder([]string{root}, log.New(&buf, "", 0))

	unknown := strings.Repeat("f", 32)
	if _, ok := f.Find(unknown); ok {
		t.Fatal("Find(unknown) = ok, want miss")
	}
	if _, ok := f.Find(unknown); ok {
		t.Fatal("second Find(unknown) = ok, want miss")
	}
	if scans := strings.Count(buf.String(), "chart scan"); scans != 1 {
		t.Errorf("scan ran %d times, want 1 (negative result must be cached)", scans)
	}
}

func TestFinderCachesHashesFromScan(t *testing.T) {
	root := t.TempDir()
	_, hashA := writeChart(t, root, "Song A", "notes.chart", "aaa")
	pathB, hashB := writeChart(t, root, "Song B", "notes.chart", "bbb")

	var buf bytes.Buffer
	f := NewFinder([]string{root}, log.New(&buf, "", 0))

	// First lookup scans; if it hashed B on the way, the second lookup
	// must be served from cache.
	f.Find(hashA)
	f.Find(hashB)

	if scans := strings.Count(buf.String(), "chart scan"); scans > 2 {
		t.Errorf("scan ran %d times, want at most 2", scans)
	}
	if got, ok := f.Find(hashB); !ok || got != pathB {
		t.Errorf("Find(%s) = %q/%v, want %q", hashB, got, ok, pathB)
	}
}
