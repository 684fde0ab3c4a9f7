package db

import (
	"database/sql"
	"time"

	"github.com/fretwork/herald/models"
)

// UpsertSong inserts or merges one song-metadata row. Merge rule: a
// non-empty incoming field overwrites the stored one; an empty incoming
// field never clears a stored value.
func UpsertSong(q Queryer, song *models.Song) error {
	_, err := q.Exec(`
	INSERT INTO songs (chart_id, title, artist, album, charter, length_ms, first_seen)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chart_id) DO UPDATE SET
		title = CASE WHEN excluded.title != '' THEN excluded.title ELSE songs.title END,
		artist = CASE WHEN excluded.artist != '' THEN excluded.artist ELSE songs.artist END,
		album = CASE WHEN excluded.album != '' THEN excluded.album ELSE songs.album END,
		charter = CASE WHEN excluded.charter != '' THEN excluded.charter ELSE songs.charter END,
		length_ms = CASE WHEN excluded.length_ms != 0 THEN excluded.length_ms ELSE songs.length_ms END`,
		song.ChartID, song.Title, song.Artist, song.Album, song.Charter,
		song.LengthMS, time.Now().UTC())
	return err
}

// GetSong returns the stored metadata for a chart id, or (nil, nil).
func (db *DB) GetSong(chartID string) (*models.Song, error) {
	song := &models.Song{}
	err := db.QueryRow(`
	SELECT chart_id, title, artist, album, charter, length_ms, first_seen
	FROM songs WHERE chart_id = ?`, chartID).Scan(
		&song.ChartID, &song.Title, &song.Artist, &song.Album,
		&song.Charter, &song.LengthMS, &song.FirstSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return song, nil
}

// UnresolvedHashes lists the chart ids a user has scores on that have no
// usable title yet. The tracker resolves these from its local song cache
// and chart files.
func (db *DB) UnresolvedHashes(userID int64) ([]string, error) {
	rows, err := db.Query(`
	SELECT DISTINCT s.chart_id
	FROM scores s LEFT JOIN songs g ON g.chart_id = s.chart_id
	WHERE s.user_id = ? AND (g.chart_id IS NULL OR g.title = '')
	ORDER BY s.chart_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
