package chart

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/fretwork/herald/models"
)

var midiTrackInstruments = map[string]models.Instrument{
	"PART GUITAR": models.Lead,
	"PART BASS":   models.Bass,
	"PART RHYTHM": models.Rhythm,
	"PART KEYS":   models.Keys,
	"PART DRUMS":  models.Drums,
}

// difficultyForKey maps a MIDI note number to its difficulty per the fixed
// charting ranges. Drums additionally chart 110 (orange cymbal) on Expert.
// Anything outside the ranges is a marker note and is ignored.
func difficultyForKey(instr models.Instrument, key uint8) (models.Difficulty, bool) {
	switch {
	case key >= 96 && key <= 100:
		return models.Expert, true
	case key >= 84 && key <= 88:
		return models.Hard, true
	case key >= 72 && key <= 76:
		return models.Medium, true
	case key >= 60 && key <= 64:
		return models.Easy, true
	case instr == models.Drums && key == 110:
		return models.Expert, true
	}
	return 0, false
}

// ParseMidi parses a Clone Hero .mid chart. Tempo events from any track
// feed the tempo map; PART tracks contribute notes; an EVENTS track's
// "[section …]" text events become practice sections.
func ParseMidi(data []byte) (*File, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading midi: %w", err)
	}

	resolution := 480
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		resolution = int(mt)
	}

	f := &File{
		Resolution: resolution,
		Tracks:     make(map[models.TrackKey]*TrackSummary),
	}
	builders := make(map[models.TrackKey]*trackBuilder)
	maxEnd := 0

	for _, track := range s.Tracks {
		absTick := 0
		var instr models.Instrument
		isPart := false
		isEvents := false

		for _, ev := range track {
			absTick += int(ev.Delta)
			msg := ev.Message

			var bpm float64
			if msg.GetMetaTempo(&bpm) {
				if bpm > 0 {
					f.TempoMap = append(f.TempoMap, TempoChange{Tick: absTick, BPM: bpm})
				}
				continue
			}

			var name string
			if msg.GetMetaTrackName(&name) {
				name = strings.ToUpper(strings.TrimSpace(name))
				instr, isPart = midiTrackInstruments[name]
				isEvents = name == "EVENTS"
				continue
			}

			if isEvents {
				var text string
				if msg.GetMetaText(&text) || msg.GetMetaMarker(&text) {
					if sec, ok := midiSectionName(text); ok {
						f.Sections = append(f.Sections, Section{Tick: absTick, Name: sec})
					}
				}
				continue
			}
			if !isPart {
				continue
			}

			var ch, key, vel uint8
			if msg.GetNoteStart(&ch, &key, &vel) {
				if diff, ok := difficultyForKey(instr, key); ok {
					tk := models.TrackKey{Instrument: instr, Difficulty: diff}
					b, ok := builders[tk]
					if !ok {
						b = newTrackBuilder()
						builders[tk] = b
					}
					b.at(absTick).frets++
					if absTick > maxEnd {
						maxEnd = absTick
					}
				}
				continue
			}
			if msg.GetNoteEnd(&ch, &key) {
				if _, ok := difficultyForKey(instr, key); ok && absTick > maxEnd {
					maxEnd = absTick
				}
			}
		}
	}

	// Star-power phrases in MIDI charts are marker notes (116) spanning the
	// phrase; count one phrase per onset.
	countStarPhrases(s, builders)

	finalize(f, builders, maxEnd)
	return f, nil
}

// countStarPhrases scans PART tracks again for the 116 overdrive marker
// and attributes one phrase per onset to every difficulty of that part.
func countStarPhrases(s *smf.SMF, builders map[models.TrackKey]*trackBuilder) {
	for _, track := range s.Tracks {
		var instr models.Instrument
		isPart := false
		phrases := 0
		for _, ev := range track {
			msg := ev.Message
			var name string
			if msg.GetMetaTrackName(&name) {
				instr, isPart = midiTrackInstruments[strings.ToUpper(strings.TrimSpace(name))]
				continue
			}
			if !isPart {
				continue
			}
			var ch, key, vel uint8
			if msg.GetNoteStart(&ch, &key, &vel) && key == 116 {
				phrases++
			}
		}
		if phrases == 0 {
			continue
		}
		for tk, b := range builders {
			if tk.Instrument == instr {
				b.starPhrases = phrases
			}
		}
	}
}

// midiSectionName extracts a practice-section name from an EVENTS-track
// text event like "[section Chorus 1]" or "[prc_chorus_1]".
func midiSectionName(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return "", false
	}
	inner := strings.TrimSpace(text[1 : len(text)-1])
	if name, ok := strings.CutPrefix(inner, "section "); ok {
		return strings.TrimSpace(name), true
	}
	if name, ok := strings.CutPrefix(inner, "prc_"); ok {
		return strings.ReplaceAll(name, "_", " "), true
	}
	return "", false
}

// ParseMidiFile parses the .mid chart at path.
func ParseMidiFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	return ParseMidi(data)
}
