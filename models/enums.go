package models

import "fmt"

// Instrument identifies a playable part in Clone Hero.
type Instrument int

const (
	Lead Instrument = iota
	Bass
	Rhythm
	Keys
	Drums
	GhlLead
	GhlBass
)

var instrumentNames = [...]string{
	Lead:    "Lead",
	Bass:    "Bass",
	Rhythm:  "Rhythm",
	Keys:    "Keys",
	Drums:   "Drums",
	GhlLead: "GHL Lead",
	GhlBass: "GHL Bass",
}

func (i Instrument) String() string {
	if i < 0 || int(i) >= len(instrumentNames) {
		return fmt.Sprintf("Instrument(%d)", int(i))
	}
	return instrumentNames[i]
}

// Valid reports whether the value is one the game emits.
func (i Instrument) Valid() bool {
	return i >= Lead && i <= GhlBass
}

// Difficulty is the chart difficulty tier.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
	Expert
)

var difficultyNames = [...]string{
	Easy:   "Easy",
	Medium: "Medium",
	Hard:   "Hard",
	Expert: "Expert",
}

func (d Difficulty) String() string {
	if d < 0 || int(d) >= len(difficultyNames) {
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Expert
}

// NoteKind classifies a parsed chart note.
type NoteKind int

const (
	NoteNormal NoteKind = iota
	NoteHopo
	NoteTap
	NoteOpen
)

// TrackKey addresses one (instrument, difficulty) part within a chart.
type TrackKey struct {
	Instrument Instrument
	Difficulty Difficulty
}

func (k TrackKey) String() string {
	return fmt.Sprintf("%s %s", k.Difficulty, k.Instrument)
}
