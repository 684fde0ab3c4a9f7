// Package metadata merges everything known about a finished song: the
// live now-playing export, the game's song-cache index, the parsed chart
// file and, as a last resort, audio tags next to the chart.
package metadata

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/dhowden/tag"

	"github.com/fretwork/herald/chart"
	"github.com/fretwork/herald/models"
	"github.com/fretwork/herald/songcache"
)

// Resolved is one enriched score's metadata. Rich is false when no
// source knew the song; display then falls back to the bracketed short
// chart id.
type Resolved struct {
	Title   string
	Artist  string
	Charter string
	Rich    bool

	// Chart-parse metrics; zero when the chart file was not found.
	TotalNotes   int
	NPS          float64
	SongLengthMS int64
	ChartPath    string
	Chart        *chart.File
}

// DisplayTitle is the title or the bracketed short id fallback.
func (r *Resolved) DisplayTitle(fp models.Fingerprint) string {
	if r.Title != "" {
		return r.Title
	}
	return fp.ShortID()
}

// Resolver owns the metadata sources. The chart-path cache inside Finder
// lives for the process lifetime; the now-playing cache is cleared per
// score event by the watcher.
type Resolver struct {
	NowPlaying *NowPlaying
	finder     *chart.Finder
	cleaner    *Cleaner
	logger     *log.Logger

	cachePath string
	mu        sync.Mutex
	index     map[string]songcache.Entry
}

// NewResolver builds a resolver over the game's now-playing export, its
// song-cache file and the configured songs roots.
func NewResolver(nowPlayingPath, songCachePath string, songsRoots []string, logger *log.Logger) *Resolver {
	r := &Resolver{
		NowPlaying: NewNowPlaying(nowPlayingPath, logger),
		finder:     chart.NewFinder(songsRoots, logger),
		cleaner:    NewCleaner(),
		logger:     logger,
		cachePath:  songCachePath,
	}
	r.reloadIndex()
	return r
}

func (r *Resolver) reloadIndex() {
	if r.cachePath == "" {
		return
	}
	index, err := songcache.ParseFile(r.cachePath)
	if err != nil {
		r.logger.Printf("error reading song cache: %v", err)
		return
	}
	r.mu.Lock()
	r.index = index
	r.mu.Unlock()
}

func (r *Resolver) cacheEntry(chartID string) (songcache.Entry, bool) {
	r.mu.Lock()
	e, ok := r.index[chartID]
	r.mu.Unlock()
	if ok {
		return e, true
	}
	// The game appends to the cache as new songs are scanned; one reload
	// covers charts added since startup.
	r.reloadIndex()
	r.mu.Lock()
	e, ok = r.index[chartID]
	r.mu.Unlock()
	return e, ok
}

// Resolve merges all sources for one fingerprint. Precedence for
// title/artist/charter: live export, song cache, chart parse, audio
// tags. Metrics always come from the chart parse.
func (r *Resolver) Resolve(fp models.Fingerprint) *Resolved {
	res := &Resolved{}

	if title, artist, charter, ok := r.NowPlaying.Current(); ok {
		res.Title, res.Artist, res.Charter = title, artist, charter
		res.Rich = true
	}

	r.fillStored(fp, res)
	return res
}

// ResolveStored is Resolve without the live export. Batch lookups use
// it so whatever happens to be playing is never attributed to an
// unrelated chart.
func (r *Resolver) ResolveStored(fp models.Fingerprint) *Resolved {
	res := &Resolved{}
	r.fillStored(fp, res)
	return res
}

func (r *Resolver) fillStored(fp models.Fingerprint, res *Resolved) {
	if entry, ok := r.cacheEntry(fp.ChartID); ok {
		if res.Title == "" {
			res.Title = r.cleaner.Strip(entry.Title)
		}
		res.Rich = true
	}

	if path, ok := r.finder.Find(fp.ChartID); ok {
		f, err := chart.Parse(path)
		if err != nil {
			r.logger.Printf("error parsing chart %s: %v", path, err)
		} else {
			res.ChartPath = path
			res.Chart = f
			res.SongLengthMS = f.LengthMS
			if track, ok := f.Tracks[models.TrackKey{Instrument: fp.Instrument, Difficulty: fp.Difficulty}]; ok {
				res.TotalNotes = track.TotalNotes
				res.NPS = track.NPS
			}
			if res.Title == "" {
				res.Title = r.cleaner.Strip(f.Name)
			}
			if res.Artist == "" {
				res.Artist = r.cleaner.Strip(f.Artist)
			}
			if res.Charter == "" {
				res.Charter = r.cleaner.Strip(f.Charter)
			}
			res.Rich = res.Rich || f.Name != "" || f.Artist != ""
		}

		if res.Title == "" || res.Artist == "" {
			r.fillFromAudioTags(filepath.Dir(path), res)
		}
	}
}

var audioFileNames = []string{"song.ogg", "song.mp3", "guitar.ogg"}

// fillFromAudioTags is the lowest-precedence source: embedded tags of the
// audio stems shipped alongside the chart.
func (r *Resolver) fillFromAudioTags(dir string, res *Resolved) {
	for _, name := range audioFileNames {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		meta, err := tag.ReadFrom(f)
		f.Close()
		if err != nil {
			continue
		}
		if res.Title == "" && meta.Title() != "" {
			res.Title = meta.Title()
			res.Rich = true
		}
		if res.Artist == "" && meta.Artist() != "" {
			res.Artist = meta.Artist()
			res.Rich = true
		}
		return
	}
}
