package metadata

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// NowPlaying polls the game's live export file: three UTF-8 lines of
// title, artist and charter. The game clears the file shortly after a
// song ends but writes the score file after that, so the last non-empty
// read is cached across the gap. The watcher clears the cache exactly
// once per fully handled score event.
type NowPlaying struct {
	path    string
	cleaner *Cleaner
	logger  *log.Logger

	mu      sync.RWMutex
	title   string
	artist  string
	charter string
}

func NewNowPlaying(path string, logger *log.Logger) *NowPlaying {
	return &NowPlaying{path: path, cleaner: NewCleaner(), logger: logger}
}

// Start runs the polling loop until stop closes. One immediate read, then
// one per interval.
func (n *NowPlaying) Start(interval time.Duration, stop <-chan struct{}) {
	n.poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.poll()
		case <-stop:
			return
		}
	}
}

func (n *NowPlaying) poll() {
	data, err := os.ReadFile(n.path)
	if err != nil {
		if !os.IsNotExist(err) {
			n.logger.Printf("error reading now-playing file: %v", err)
		}
		return
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	var title, artist, charter string
	if len(lines) > 0 {
		title = n.cleaner.Strip(lines[0])
	}
	if len(lines) > 1 {
		artist = n.cleaner.Strip(lines[1])
	}
	if len(lines) > 2 {
		charter = n.cleaner.Strip(lines[2])
	}

	// An empty file is the post-song clear; keep the cached values.
	if title == "" {
		return
	}

	n.mu.Lock()
	n.title, n.artist, n.charter = title, artist, charter
	n.mu.Unlock()
}

// Current returns the cached song, or ok=false when nothing has been
// seen since the last Clear.
func (n *NowPlaying) Current() (title, artist, charter string, ok bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.title, n.artist, n.charter, n.title != ""
}

// Clear drops the cache. Called once after a score event is handled so a
// stale song never decorates the next score.
func (n *NowPlaying) Clear() {
	n.mu.Lock()
	n.title, n.artist, n.charter = "", "", ""
	n.mu.Unlock()
}
