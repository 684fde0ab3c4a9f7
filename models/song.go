package models

import "time"

// Song is the server-side metadata row for one chart. Every field except
// ChartID is optional; upserts follow the non-empty merge rule (an empty
// incoming field never clears a stored one).
type Song struct {
	ChartID   string
	Title     string
	Artist    string
	Album     string
	Charter   string
	LengthMS  int64
	FirstSeen time.Time
}

// ChartMeta is the parsed chart summary for one (chart, instrument,
// difficulty), persisted server-side for full-combo detection and the
// hardest-charts query.
type ChartMeta struct {
	Fingerprint
	TotalNotes       int
	ChordCount       int
	TapCount         int
	OpenNoteCount    int
	StarPowerPhrases int
	SongLengthMS     int64
	NoteDensity      float64
	SongName         string
	Artist           string
	Charter          string
	Genre            string
	ChartFilePath    string
	ParsedAt         time.Time
}
