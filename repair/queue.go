// Package repair implements the "needs repair" queue the original source's
// comments describe wanting but never wired up: a DirectBlock read that
// verifies against a second replica after the first fails its hash check
// shouldn't just silently succeed and forget about the damaged copy. Queue
// persists those sightings to a small SQLite database (the on-disk cache
// idiom this repo's teacher uses for its disk-backed LRU) so a background
// worker -- or an operator running a one-off repair pass -- can drain them
// later. A nil *Queue is valid and every method becomes a no-op, matching
// the source's default of leaving the hook unscheduled.
package repair

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry names one DirectBlock replica found damaged: it failed to fetch or
// failed its hash check on read, or its write failed on put.
type Entry struct {
	Bucket     string
	Descriptor []byte
	Hash       []byte
	Range      [2]int // [start, end) within the owning block's logical stream
	QueuedAt   time.Time
}

// Queue is a disk-backed FIFO of repair Entry values.
type Queue struct {
	db *sql.DB
}

// Open opens (creating if necessary) a repair queue backed by the SQLite
// database at path.
func Open(path string) (*Queue, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0744); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS repair_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bucket TEXT NOT NULL,
		descriptor BLOB NOT NULL,
		hash BLOB NOT NULL,
		range_start INTEGER NOT NULL,
		range_end INTEGER NOT NULL,
		queued_at INTEGER NOT NULL
	);`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Queue{db: db}, nil
}

// Close releases the underlying database handle.
func (q *Queue) Close() error {
	if q == nil {
		return nil
	}
	return q.db.Close()
}

// Enqueue records that a replica of a DirectBlock was found damaged.
func (q *Queue) Enqueue(e Entry) error {
	if q == nil {
		return nil
	}
	_, err := q.db.Exec(
		`INSERT INTO repair_queue (bucket, descriptor, hash, range_start, range_end, queued_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Bucket, e.Descriptor, e.Hash, e.Range[0], e.Range[1], time.Now().Unix(),
	)
	return err
}

// Drain removes and returns up to limit queued entries, oldest first.
func (q *Queue) Drain(limit int) ([]Entry, error) {
	if q == nil {
		return nil, nil
	}
	rows, err := q.db.Query(
		`SELECT id, bucket, descriptor, hash, range_start, range_end, queued_at FROM repair_queue ORDER BY id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	var entries []Entry
	for rows.Next() {
		var id int64
		var e Entry
		var queuedAt int64
		if err := rows.Scan(&id, &e.Bucket, &e.Descriptor, &e.Hash, &e.Range[0], &e.Range[1], &queuedAt); err != nil {
			return nil, err
		}
		e.QueuedAt = time.Unix(queuedAt, 0)
		ids = append(ids, id)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := q.db.Exec(`DELETE FROM repair_queue WHERE id = ?`, id); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
