package songcache

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func cacheEntry(t *testing.T, chartID string, tail []byte) []byte {
	t.Helper()
	raw, err := hex.DecodeString(chartID)
	if err != nil || len(raw) != 16 {
		t.Fatalf("bad test chart id %q", chartID)
	}
	var buf bytes.Buffer
	buf.Write([]byte("\x0aClone Hero\x00"))
	buf.Write(raw)
	buf.Write(tail)
	return buf.Bytes()
}

func TestParseRecoverEntries(t *testing.T) {
	idA := "00112233445566778899aabbccddeeff"
	idB := "a1b2c3d4e5f60718293a4b5c6d7e8f90"
	idC := "ffeeddccbbaa99887766554433221100"

	var blob bytes.Buffer
	blob.Write([]byte{0x01, 0x02, 0x03}) // leading noise
	blob.Write(cacheEntry(t, idA, append([]byte{0x09, 0x09}, []byte("C:\\CloneHero\\Songs\\Artist - Some Song\\notes.chart")...)))
	blob.Write([]byte("unrelated"))
	blob.Write(cacheEntry(t, idB, []byte("garbage Songs\\packed song.sng trailing")))
	blob.Write(cacheEntry(t, idC, bytes.Repeat([]byte{0x00}, 40))) // no path

	entries := Parse(blob.Bytes())

	if len(entries) != 2 {
		t.Fatalf("Parse() recovered %d entries, want 2", len(entries))
	}
	if e, ok := entries[idA]; !ok {
		t.Errorf("entry %s missing", idA)
	} else {
		if e.Path != "C:\\CloneHero\\Songs\\Artist - Some Song\\notes.chart" {
			t.Errorf("path = %q", e.Path)
		}
		if e.Title != "Artist - Some Song" {
			t.Errorf("title = %q, want %q", e.Title, "Artist - Some Song")
		}
	}
	if e, ok := entries[idB]; !ok {
		t.Errorf("entry %s missing", idB)
	} else {
		if e.Path != "Songs\\packed song.sng" {
			t.Errorf("path = %q", e.Path)
		}
		if e.Title != "Packed Song" {
			t.Errorf("title = %q, want %q", e.Title, "Packed Song")
		}
	}
	if _, ok := entries[idC]; ok {
		t.Errorf("entry %s has no path and should have been skipped", idC)
	}
}

func TestParseTerminatesPathAtNul(t *testing.T) {
	id := "00112233445566778899aabbccddeeff"
	tail := append([]byte("Songs\\My Folder"), 0x00)
	tail = append(tail, []byte("ignored.chart")...)

	entries := Parse(cacheEntry(t, id, tail))
	e, ok := entries[id]
	if !ok {
		t.Fatal("entry missing")
	}
	if e.Path != "Songs\\My Folder" {
		t.Errorf("path = %q, want %q", e.Path, "Songs\\My Folder")
	}
	if e.Title != "My Folder" {
		t.Errorf("title = %q, want %q", e.Title, "My Folder")
	}
}

func TestParseTruncatedChartID(t *testing.T) {
	blob := append([]byte("\x0aClone Hero\x00"), 0x01, 0x02) // id cut short
	if entries := Parse(blob); len(entries) != 0 {
		t.Errorf("Parse() = %v, want empty", entries)
	}
}

func TestParseReplacesInvalidUTF8(t *testing.T) {
	id := "00112233445566778899aabbccddeeff"
	tail := []byte("Songs\\bad")
	tail = append(tail, 0xff, 0xfe) // invalid UTF-8 inside the path
	tail = append(tail, []byte("name.sng")...)

	entries := Parse(cacheEntry(t, id, tail))
	e, ok := entries[id]
	if !ok {
		t.Fatal("entry missing")
	}
	if !bytes.Contains([]byte(e.Path), []byte("\uFFFD")) {
		t.Errorf("path %q should contain the replacement rune", e.Path)
	}
}

func TestTitleFromPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"sng stem", "Songs\\black_sabbath-paranoid.sng", "Black Sabbath-Paranoid"},
		{"folder chart", "C:\\CH\\Songs\\Iron Maiden - The Trooper\\notes.mid", "Iron Maiden - The Trooper"},
		{"bare notes", "notes.chart", "Notes"},
		{"no suffix", "Songs\\Some Folder", "Some Folder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := titleFromPath(tt.path); got != tt.want {
				t.Errorf("titleFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
