// Package scoredata decodes Clone Hero's packed score database
// (scoredata.bin). The file is little-endian: a 4-byte header, a u32 song
// count, then per song a 16-byte chart id, a u8 instrument-record count, a
// u24 play count and that many fixed 16-byte instrument records.
package scoredata

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/fretwork/herald/models"
)

// Record is one decoded score entry: one (chart, instrument, difficulty)
// result plus the song's play count.
type Record struct {
	models.Fingerprint
	Score     int
	Stars     int
	Num       int // opaque completion numerator; not notes hit
	Den       int // opaque completion denominator; not notes total
	PlayCount int
}

// CompletionPercent is the game's completion metric as a percentage.
func (r Record) CompletionPercent() float64 {
	if r.Den == 0 {
		return 0
	}
	return 100 * float64(r.Num) / float64(r.Den)
}

// instrRecord mirrors the fixed wire layout of one instrument record.
type instrRecord struct {
	InstrumentID uint16
	Difficulty   uint8
	Num          uint16
	Den          uint16
	Stars        uint8
	_            [4]byte
	Score        uint32
}

// Parse decodes every score record from r. Bytes after the declared song
// count are ignored (future game versions append fields there), but a
// truncation inside a declared record is an error.
func Parse(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)

	var header [4]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	var songCount uint32
	if err := binary.Read(br, binary.LittleEndian, &songCount); err != nil {
		return nil, fmt.Errorf("reading song count: %w", err)
	}

	var records []Record
	for i := uint32(0); i < songCount; i++ {
		var rawID [16]byte
		if _, err := io.ReadFull(br, rawID[:]); err != nil {
			return nil, fmt.Errorf("song %d: reading chart id: %w", i, err)
		}
		chartID := hex.EncodeToString(rawID[:])

		instrCount, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("song %d: reading instrument count: %w", i, err)
		}
		var pc [3]byte
		if _, err := io.ReadFull(br, pc[:]); err != nil {
			return nil, fmt.Errorf("song %d: reading play count: %w", i, err)
		}
		playCount := int(pc[0]) | int(pc[1])<<8 | int(pc[2])<<16

		for j := 0; j < int(instrCount); j++ {
			var rec instrRecord
			if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
				return nil, fmt.Errorf("song %d: reading instrument record %d: %w", i, j, err)
			}
			records = append(records, Record{
				Fingerprint: models.Fingerprint{
					ChartID:    chartID,
					Instrument: models.Instrument(rec.InstrumentID),
					Difficulty: models.Difficulty(rec.Difficulty),
				},
				Score:     int(rec.Score),
				Stars:     int(rec.Stars),
				Num:       int(rec.Num),
				Den:       int(rec.Den),
				PlayCount: playCount,
			})
		}
	}
	return records, nil
}

// ParseFile decodes the score database at path.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening score file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Snapshot folds records into the per-fingerprint maximum score, keyed by
// Fingerprint.Key. This is the shape the watcher compares between reads.
func Snapshot(records []Record) map[string]int {
	snap := make(map[string]int, len(records))
	for _, r := range records {
		if cur, ok := snap[r.Key()]; !ok || r.Score > cur {
			snap[r.Key()] = r.Score
		}
	}
	return snap
}
