package checkpoint

import (
	"database/sql"
	"fmt"
	"os"
)

// Reader provides deterministic read access to a checkpoint database for
// resume checks and post-processing converters.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens the database at Path(dir, prefix) read-only.
func OpenReader(dir, prefix string) (*Reader, error) {
	path := Path(dir, prefix)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := verifySchemaVersion(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{db: db, path: path}, nil
}

// Columns returns the variable registry in definition order.
func (r *Reader) Columns() ([]Column, error) {
	rows, err := r.db.Query(`
		SELECT id, name, unit, pos FROM columns ORDER BY pos ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.ID, &c.Name, &c.Unit, &c.Pos); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

// Times returns every frame time in frame order.
func (r *Reader) Times() ([]float64, error) {
	rows, err := r.db.Query(`
		SELECT time FROM frames ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query times: %w", err)
	}
	defer rows.Close()

	var times []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan time: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate times: %w", err)
	}
	return times, nil
}

// FrameCount returns the number of stored frames.
func (r *Reader) FrameCount() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// Frame returns the time and per-column samples of one frame by sequence
// number (0-based, frame order).
func (r *Reader) Frame(seq int) (float64, map[string][]float64, error) {
	var t float64
	if err := r.db.QueryRow(`
		SELECT time FROM frames WHERE seq = ?
	`, seq).Scan(&t); err != nil {
		return 0, nil, fmt.Errorf("query frame %d: %w", seq, err)
	}

	rows, err := r.db.Query(`
		SELECT c.name, s.data
		FROM samples s JOIN columns c ON c.id = s.column_id
		WHERE s.frame_seq = ?
		ORDER BY c.pos ASC
	`, seq)
	if err != nil {
		return 0, nil, fmt.Errorf("query samples for frame %d: %w", seq, err)
	}
	defer rows.Close()

	data := make(map[string][]float64)
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return 0, nil, fmt.Errorf("scan samples: %w", err)
		}
		data[name] = unpackFloat64s(blob)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate samples: %w", err)
	}
	return t, data, nil
}

// ColumnSeries returns one node's values of one column across all frames,
// in frame order.
func (r *Reader) ColumnSeries(name string, node int) ([]float64, error) {
	if node < 0 {
		return nil, fmt.Errorf("checkpoint: negative node index %d", node)
	}
	rows, err := r.db.Query(`
		SELECT s.data
		FROM samples s JOIN columns c ON c.id = s.column_id
		WHERE c.name = ?
		ORDER BY s.frame_seq ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query series %q: %w", name, err)
	}
	defer rows.Close()

	var series []float64
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		vals := unpackFloat64s(blob)
		if node >= len(vals) {
			return nil, fmt.Errorf("checkpoint: node %d out of range for column %q (%d samples)",
				node, name, len(vals))
		}
		series = append(series, vals[node])
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	if series == nil {
		return nil, fmt.Errorf("checkpoint: no column %q", name)
	}
	return series, nil
}

// Meta returns a stored meta value. The second return is false when the
// key is absent.
func (r *Reader) Meta(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query meta %q: %w", key, err)
	}
	return value, true, nil
}

// Path returns the database file path.
func (r *Reader) Path() string { return r.path }

// Close closes the database. Safe to call more than once.
func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	db := r.db
	r.db = nil
	return db.Close()
}
