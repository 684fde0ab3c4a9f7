package db

import (
	"database/sql"
	"time"

	"github.com/fretwork/herald/models"
)

// UpsertChartMeta stores one parsed chart summary, replacing any earlier
// parse of the same (chart, instrument, difficulty).
func UpsertChartMeta(q Queryer, m *models.ChartMeta) error {
	_, err := q.Exec(`
	INSERT INTO chart_metadata (chart_id, instrument, difficulty, total_notes,
		chord_count, tap_count, open_note_count, star_power_phrases,
		song_length_ms, note_density, song_name, artist, charter, genre,
		chart_file_path, parsed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chart_id, instrument, difficulty) DO UPDATE SET
		total_notes = excluded.total_notes,
		chord_count = excluded.chord_count,
		tap_count = excluded.tap_count,
		open_note_count = excluded.open_note_count,
		star_power_phrases = excluded.star_power_phrases,
		song_length_ms = excluded.song_length_ms,
		note_density = excluded.note_density,
		song_name = CASE WHEN excluded.song_name != '' THEN excluded.song_name ELSE chart_metadata.song_name END,
		artist = CASE WHEN excluded.artist != '' THEN excluded.artist ELSE chart_metadata.artist END,
		charter = CASE WHEN excluded.charter != '' THEN excluded.charter ELSE chart_metadata.charter END,
		genre = CASE WHEN excluded.genre != '' THEN excluded.genre ELSE chart_metadata.genre END,
		chart_file_path = CASE WHEN excluded.chart_file_path != '' THEN excluded.chart_file_path ELSE chart_metadata.chart_file_path END,
		parsed_at = excluded.parsed_at`,
		m.ChartID, int(m.Instrument), int(m.Difficulty), m.TotalNotes,
		m.ChordCount, m.TapCount, m.OpenNoteCount, m.StarPowerPhrases,
		m.SongLengthMS, m.NoteDensity, m.SongName, m.Artist, m.Charter,
		m.Genre, m.ChartFilePath, time.Now().UTC())
	return err
}

func scanChartMeta(scan func(...any) error) (*models.ChartMeta, error) {
	m := &models.ChartMeta{}
	err := scan(&m.ChartID, &m.Instrument, &m.Difficulty, &m.TotalNotes,
		&m.ChordCount, &m.TapCount, &m.OpenNoteCount, &m.StarPowerPhrases,
		&m.SongLengthMS, &m.NoteDensity, &m.SongName, &m.Artist, &m.Charter,
		&m.Genre, &m.ChartFilePath, &m.ParsedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

const chartMetaColumns = `chart_id, instrument, difficulty, total_notes,
	chord_count, tap_count, open_note_count, star_power_phrases,
	song_length_ms, note_density, song_name, artist, charter, genre,
	chart_file_path, parsed_at`

// GetChartMeta returns the parse summary for a fingerprint, or (nil, nil).
func GetChartMeta(q Queryer, fp models.Fingerprint) (*models.ChartMeta, error) {
	m, err := scanChartMeta(q.QueryRow(`
	SELECT `+chartMetaColumns+`
	FROM chart_metadata
	WHERE chart_id = ? AND instrument = ? AND difficulty = ?`,
		fp.ChartID, int(fp.Instrument), int(fp.Difficulty)).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// HardestCharts lists parsed charts ordered by note density descending,
// filtered to the requested NPS band and a minimum note count.
func (db *DB) HardestCharts(minNotes int, minNPS, maxNPS float64, limit int) ([]*models.ChartMeta, error) {
	rows, err := db.Query(`
	SELECT `+chartMetaColumns+`
	FROM chart_metadata
	WHERE total_notes >= ? AND note_density >= ? AND note_density <= ?
	ORDER BY note_density DESC
	LIMIT ?`, minNotes, minNPS, maxNPS, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChartMeta
	for rows.Next() {
		m, err := scanChartMeta(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
