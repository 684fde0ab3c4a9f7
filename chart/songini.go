package chart

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// SongINI is the metadata subset read from a chart folder's song.ini.
type SongINI struct {
	Name    string
	Artist  string
	Charter string
	Genre   string
}

// LoadSongINI reads a song.ini forgivingly: case-insensitive sections and
// keys, BOM tolerated, unparseable lines skipped. Charters ship these
// files in every encoding and shape imaginable.
func LoadSongINI(path string) (*SongINI, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("loading song.ini: %w", err)
	}
	sec := cfg.Section("song")
	meta := &SongINI{
		Name:    sec.Key("name").String(),
		Artist:  sec.Key("artist").String(),
		Charter: sec.Key("charter").String(),
		Genre:   sec.Key("genre").String(),
	}
	if meta.Charter == "" {
		// older charts use the pre-CH key
		meta.Charter = sec.Key("frets").String()
	}
	return meta, nil
}
