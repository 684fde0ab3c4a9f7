// Package chart parses Clone Hero chart files: the .chart text format and
// the .mid SMF format. Both produce the same aggregate: per (instrument,
// difficulty) playable-note counts plus the song-level tempo map, practice
// sections and length.
//
// A playable note is one note-onset instant; a chord of any width counts
// once. Full-combo detection downstream depends on that rule, so both
// parsers group raw note events by tick before counting.
package chart

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fretwork/herald/models"
)

const defaultResolution = 192

// TempoChange is one tempo-map entry: from Tick onward the song runs at
// BPM until the next entry.
type TempoChange struct {
	Tick int
	BPM  float64
}

// TimeSignature is a [SyncTrack] TS event. Only the numerator is stored;
// the game ignores the denominator for charting purposes.
type TimeSignature struct {
	Tick      int
	Numerator int
}

// Section is a practice-mode marker.
type Section struct {
	Tick int
	Name string
}

// TrackSummary aggregates one (instrument, difficulty) part.
type TrackSummary struct {
	TotalNotes       int
	ChordCount       int
	HopoCount        int
	TapCount         int
	OpenCount        int
	StarPowerPhrases int
	NPS              float64
}

// File is one fully parsed chart.
type File struct {
	Resolution     int
	Name           string
	Artist         string
	Charter        string
	Genre          string
	TempoMap       []TempoChange
	TimeSignatures []TimeSignature
	Sections       []Section
	LengthMS       int64
	Tracks         map[models.TrackKey]*TrackSummary
}

// tickNotes collects everything charted at a single tick of one part.
type tickNotes struct {
	frets  int
	open   bool
	forced bool
	tap    bool
}

type trackBuilder struct {
	ticks       map[int]*tickNotes
	starPhrases int
}

func newTrackBuilder() *trackBuilder {
	return &trackBuilder{ticks: make(map[int]*tickNotes)}
}

func (b *trackBuilder) at(tick int) *tickNotes {
	tn, ok := b.ticks[tick]
	if !ok {
		tn = &tickNotes{}
		b.ticks[tick] = tn
	}
	return tn
}

// kind classifies the tick's playable note. Tap wins over forced, which
// wins over open: that is the order the game applies modifiers in.
func (tn *tickNotes) kind() models.NoteKind {
	switch {
	case tn.tap:
		return models.NoteTap
	case tn.forced:
		return models.NoteHopo
	case tn.open && tn.frets == 0:
		return models.NoteOpen
	}
	return models.NoteNormal
}

// summary folds per-tick note groups into the counted aggregate. Modifier
// flags never add playable notes; only ticks holding a fret or open note
// count, each under exactly one kind.
func (b *trackBuilder) summary() *TrackSummary {
	s := &TrackSummary{StarPowerPhrases: b.starPhrases}
	for _, tn := range b.ticks {
		if tn.frets == 0 && !tn.open {
			continue
		}
		s.TotalNotes++
		if tn.frets >= 2 {
			s.ChordCount++
		}
		switch tn.kind() {
		case models.NoteHopo:
			s.HopoCount++
		case models.NoteTap:
			s.TapCount++
		case models.NoteOpen:
			s.OpenCount++
		}
	}
	return s
}

// .chart section names are <Difficulty><InstrumentSuffix>.
var chartDifficulties = map[string]models.Difficulty{
	"Easy":   models.Easy,
	"Medium": models.Medium,
	"Hard":   models.Hard,
	"Expert": models.Expert,
}

var chartInstruments = map[string]models.Instrument{
	"Single":       models.Lead,
	"DoubleBass":   models.Bass,
	"DoubleRhythm": models.Rhythm,
	"Keyboard":     models.Keys,
	"Drums":        models.Drums,
	"GHLGuitar":    models.GhlLead,
	"GHLBass":      models.GhlBass,
}

// trackKeyForSection maps a .chart section name like "ExpertSingle" to its
// (instrument, difficulty). Unknown sections are skipped by the caller.
func trackKeyForSection(name string) (models.TrackKey, bool) {
	for prefix, diff := range chartDifficulties {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if instr, ok := chartInstruments[name[len(prefix):]]; ok {
			return models.TrackKey{Instrument: instr, Difficulty: diff}, true
		}
	}
	return models.TrackKey{}, false
}

// ParseChart parses the .chart text format. Malformed lines are skipped;
// only an unreadable stream is an error.
func ParseChart(r io.Reader) (*File, error) {
	f := &File{
		Resolution: defaultResolution,
		Tracks:     make(map[models.TrackKey]*TrackSummary),
	}
	builders := make(map[models.TrackKey]*trackBuilder)

	var (
		section   string
		inBody    bool
		key       models.TrackKey
		isTrack   bool
		maxEnd    int
		firstLine = true
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if firstLine {
			line = strings.TrimPrefix(line, "\uFEFF")
			firstLine = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			section = line[1 : len(line)-1]
			key, isTrack = trackKeyForSection(section)
			inBody = false
			continue
		case line == "{":
			inBody = true
			continue
		case line == "}":
			inBody = false
			continue
		}
		if !inBody || section == "" {
			continue
		}

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)

		switch {
		case section == "Song":
			parseSongField(f, k, v)
		case section == "SyncTrack":
			tick, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			parseSyncEvent(f, tick, v)
		case section == "Events":
			tick, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			if name, ok := sectionEventName(v); ok {
				f.Sections = append(f.Sections, Section{Tick: tick, Name: name})
			}
		case isTrack:
			tick, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			b, ok := builders[key]
			if !ok {
				b = newTrackBuilder()
				builders[key] = b
			}
			if end, ok := parseTrackEvent(b, tick, v); ok && end > maxEnd {
				maxEnd = end
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading chart: %w", err)
	}

	finalize(f, builders, maxEnd)
	return f, nil
}

// ParseChartFile parses the .chart file at path.
func ParseChartFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chart: %w", err)
	}
	defer fh.Close()
	return ParseChart(fh)
}

func parseSongField(f *File, k, v string) {
	v = strings.Trim(v, `"`)
	switch k {
	case "Resolution":
		if res, err := strconv.Atoi(v); err == nil && res > 0 {
			f.Resolution = res
		}
	case "Name":
		f.Name = v
	case "Artist":
		f.Artist = v
	case "Charter":
		f.Charter = v
	case "Genre":
		f.Genre = v
	}
}

func parseSyncEvent(f *File, tick int, v string) {
	fields := strings.Fields(v)
	if len(fields) < 2 {
		return
	}
	switch fields[0] {
	case "B":
		milliBPM, err := strconv.Atoi(fields[1])
		if err != nil || milliBPM <= 0 {
			return
		}
		f.TempoMap = append(f.TempoMap, TempoChange{Tick: tick, BPM: float64(milliBPM) / 1000})
	case "TS":
		num, err := strconv.Atoi(fields[1])
		if err != nil {
			return
		}
		f.TimeSignatures = append(f.TimeSignatures, TimeSignature{Tick: tick, Numerator: num})
	}
}

// sectionEventName extracts the name from an [Events] line value like
// `E "section Chorus 1"`.
func sectionEventName(v string) (string, bool) {
	rest, ok := strings.CutPrefix(v, "E ")
	if !ok {
		return "", false
	}
	rest = strings.Trim(strings.TrimSpace(rest), `"`)
	name, ok := strings.CutPrefix(rest, "section ")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(name), true
}

// parseTrackEvent applies one instrument-section event to the builder and
// reports the event's end tick (onset + sustain) for length tracking.
func parseTrackEvent(b *trackBuilder, tick int, v string) (int, bool) {
	fields := strings.Fields(v)
	if len(fields) < 3 {
		return 0, false
	}
	switch fields[0] {
	case "N":
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, false
		}
		dur, err := strconv.Atoi(fields[2])
		if err != nil {
			return 0, false
		}
		tn := b.at(tick)
		switch {
		case code >= 0 && code <= 4:
			tn.frets++
		case code == 5:
			tn.forced = true
		case code == 6:
			tn.tap = true
		case code == 7:
			tn.open = true
		default:
			return 0, false
		}
		return tick + dur, true
	case "S":
		kind, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, false
		}
		dur, err := strconv.Atoi(fields[2])
		if err != nil {
			return 0, false
		}
		if kind == 2 {
			b.starPhrases++
			return tick + dur, true
		}
	}
	return 0, false
}

// finalize sorts song-level events, computes the length and builds the
// per-part summaries with their note densities.
func finalize(f *File, builders map[models.TrackKey]*trackBuilder, maxEnd int) {
	sort.Slice(f.TempoMap, func(i, j int) bool { return f.TempoMap[i].Tick < f.TempoMap[j].Tick })
	sort.Slice(f.Sections, func(i, j int) bool { return f.Sections[i].Tick < f.Sections[j].Tick })
	if len(f.TempoMap) == 0 || f.TempoMap[0].Tick > 0 {
		f.TempoMap = append([]TempoChange{{Tick: 0, BPM: 120}}, f.TempoMap...)
	}

	f.LengthMS = lengthMS(f.TempoMap, f.Resolution, maxEnd)
	for key, b := range builders {
		s := b.summary()
		if f.LengthMS > 0 {
			s.NPS = float64(s.TotalNotes) * 1000 / float64(f.LengthMS)
		}
		f.Tracks[key] = s
	}
}

// lengthMS integrates the piecewise-constant tempo map from tick 0 to
// endTick: each segment contributes ticks/resolution/bpm * 60000 ms.
func lengthMS(tempo []TempoChange, resolution, endTick int) int64 {
	if endTick <= 0 || resolution <= 0 {
		return 0
	}
	total := 0.0
	for i, tc := range tempo {
		if tc.Tick >= endTick {
			break
		}
		segEnd := endTick
		if i+1 < len(tempo) && tempo[i+1].Tick < endTick {
			segEnd = tempo[i+1].Tick
		}
		if segEnd <= tc.Tick || tc.BPM <= 0 {
			continue
		}
		total += float64(segEnd-tc.Tick) / float64(resolution) / tc.BPM * 60000
	}
	return int64(total)
}

// Parse reads the chart at path, dispatching on extension, and merges
// metadata from an adjacent song.ini when the chart itself has none.
func Parse(path string) (*File, error) {
	var (
		f   *File
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".chart":
		f, err = ParseChartFile(path)
	case ".mid", ".midi":
		f, err = ParseMidiFile(path)
	default:
		return nil, fmt.Errorf("unsupported chart extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if meta, iniErr := LoadSongINI(filepath.Join(filepath.Dir(path), "song.ini")); iniErr == nil {
		if f.Name == "" {
			f.Name = meta.Name
		}
		if f.Artist == "" {
			f.Artist = meta.Artist
		}
		if f.Charter == "" {
			f.Charter = meta.Charter
		}
		if f.Genre == "" {
			f.Genre = meta.Genre
		}
	}
	return f, nil
}
