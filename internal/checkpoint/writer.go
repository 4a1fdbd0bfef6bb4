package checkpoint

import (
	"database/sql"
	"fmt"
	"math"
	"os"
)

// Column describes one entry of the variable registry.
type Column struct {
	ID   int64
	Name string
	Unit string
	Pos  int
}

// Option configures Create and Extend.
type Option func(*options)

type options struct {
	overwrite bool
}

// WithOverwrite lets Create replace an existing database file. Without it
// Create fails with ErrExists.
func WithOverwrite() Option {
	return func(o *options) { o.overwrite = true }
}

// Writer appends frames to a checkpoint database. It is opened by Create
// (fresh file, define mode) or Extend (existing file, resume).
type Writer struct {
	db   *sql.DB
	path string

	// extending is true when the writer was opened by Extend: column
	// declarations are lookups against the stored registry.
	extending bool
	defining  bool

	columns []Column
	byName  map[string]int

	// rowLen is the per-column sample length, fixed by the first written
	// row (or by the stored samples in extend mode). Zero means unknown.
	rowLen int

	lastTime float64
	hasLast  bool
	nextSeq  int64
}

// Create opens a fresh database at Path(dir, prefix) in define mode.
// An existing file is an error unless WithOverwrite is given.
func Create(dir, prefix string, opts ...Option) (*Writer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	path := Path(dir, prefix)
	if _, err := os.Stat(path); err == nil {
		if !o.overwrite {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		// Remove the database and its WAL sidecars so the new run does
		// not inherit stale journal state.
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("remove %s: %w", p, err)
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Writer{
		db:       db,
		path:     path,
		defining: true,
		byName:   make(map[string]int),
	}, nil
}

// Extend opens the existing database at Path(dir, prefix) for resume.
//
// The stored last frame time must not be past resumeTime (within a small
// tolerance); otherwise a ConflictError is returned and the file is left
// unmodified. A file with no frames is not extendable (ConflictError with
// StoredTime NaN). Column declarations on the returned writer verify the
// stored registry instead of defining.
func Extend(dir, prefix string, resumeTime float64, opts ...Option) (*Writer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

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
		return nil, fmt.Errorf("extend %s: %w", path, err)
	}

	w := &Writer{
		db:        db,
		path:      path,
		extending: true,
		defining:  true,
		byName:    make(map[string]int),
	}

	last, ok, err := w.LastTime()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("extend %s: %w", path, err)
	}
	if !ok {
		db.Close()
		return nil, &ConflictError{Path: path, StoredTime: math.NaN(), ResumeTime: resumeTime}
	}
	if last > resumeTime+timeTol {
		db.Close()
		return nil, &ConflictError{Path: path, StoredTime: last, ResumeTime: resumeTime}
	}
	w.lastTime, w.hasLast = last, true

	if err := w.loadStored(); err != nil {
		db.Close()
		return nil, fmt.Errorf("extend %s: %w", path, err)
	}
	return w, nil
}

// loadStored pulls the stored registry, next frame sequence and sample
// length into the writer.
func (w *Writer) loadStored() error {
	rows, err := w.db.Query(`
		SELECT id, name, unit, pos FROM columns ORDER BY pos ASC
	`)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()
	var stored []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.ID, &c.Name, &c.Unit, &c.Pos); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		stored = append(stored, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}
	w.columns = stored
	for i := range w.columns {
		w.byName[w.columns[i].Name] = i
	}

	if err := w.db.QueryRow(`
		SELECT COALESCE(MAX(seq), -1) + 1 FROM frames
	`).Scan(&w.nextSeq); err != nil {
		return fmt.Errorf("query next seq: %w", err)
	}

	var n sql.NullInt64
	if err := w.db.QueryRow(`
		SELECT LENGTH(data) FROM samples ORDER BY frame_seq DESC, column_id ASC LIMIT 1
	`).Scan(&n); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query sample length: %w", err)
	}
	if n.Valid {
		w.rowLen = int(n.Int64) / 8
	}
	return nil
}

// DefineColumn declares an output variable. Legal only before
// EndDefineMode. In extend mode the declaration is a lookup: the column
// must already exist with the same unit, or a ConflictError is returned.
func (w *Writer) DefineColumn(name, unit string) error {
	if !w.defining {
		return fmt.Errorf("%w: DefineColumn(%q)", ErrDefineOver, name)
	}

	if w.extending {
		i, ok := w.byName[name]
		if !ok || w.columns[i].Unit != unit {
			return &ConflictError{Path: w.path, StoredTime: w.lastTime, Column: name}
		}
		w.columns[i].Pos = -w.columns[i].Pos - 1 // mark matched; restored by EndDefineMode
		return nil
	}

	if _, ok := w.byName[name]; ok {
		return fmt.Errorf("checkpoint: column %q defined twice", name)
	}
	pos := len(w.columns)
	res, err := w.db.Exec(`
		INSERT INTO columns (name, unit, pos) VALUES (?, ?, ?)
	`, name, unit, pos)
	if err != nil {
		return fmt.Errorf("define column %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("define column %q: %w", name, err)
	}
	w.columns = append(w.columns, Column{ID: id, Name: name, Unit: unit, Pos: pos})
	w.byName[name] = len(w.columns) - 1
	return nil
}

// DefineUnlimitedDimension names the frame axis and records the writer's
// step estimate. In extend mode the stored axis name must match.
func (w *Writer) DefineUnlimitedDimension(name, unit string, estimatedSteps int) error {
	if !w.defining {
		return fmt.Errorf("%w: DefineUnlimitedDimension(%q)", ErrDefineOver, name)
	}

	if w.extending {
		var stored string
		err := w.db.QueryRow(`SELECT value FROM meta WHERE key = 'time_name'`).Scan(&stored)
		if err == sql.ErrNoRows || (err == nil && stored != name) {
			return &ConflictError{Path: w.path, StoredTime: w.lastTime, Column: name}
		}
		if err != nil {
			return fmt.Errorf("lookup unlimited dimension: %w", err)
		}
		return nil
	}

	if err := w.SetMeta("time_name", name); err != nil {
		return err
	}
	if err := w.SetMeta("time_unit", unit); err != nil {
		return err
	}
	return w.SetMeta("estimated_steps", fmt.Sprintf("%d", estimatedSteps))
}

// EndDefineMode closes the registry. In extend mode it verifies that every
// stored column was matched by a DefineColumn call; a stored column the
// current definition no longer has is a conflict.
func (w *Writer) EndDefineMode() error {
	if !w.defining {
		return ErrDefineOver
	}
	if w.extending {
		for i := range w.columns {
			if w.columns[i].Pos >= 0 {
				return &ConflictError{Path: w.path, StoredTime: w.lastTime, Column: w.columns[i].Name}
			}
			w.columns[i].Pos = -w.columns[i].Pos - 1
		}
	}
	w.defining = false
	return nil
}

// SetMeta stores a key/value pair, replacing any existing value.
func (w *Writer) SetMeta(key, value string) error {
	_, err := w.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// WriteRow appends one frame: the time plus one sample slice per defined
// column, all in a single transaction. Missing, unknown or short slices
// are rejected before anything is committed.
func (w *Writer) WriteRow(time float64, cols map[string][]float64) error {
	if w.defining {
		return fmt.Errorf("checkpoint: WriteRow before EndDefineMode")
	}
	if w.hasLast && time <= w.lastTime+timeTol {
		return fmt.Errorf("%w: time %v, stored last %v", ErrNonMonotonicTime, time, w.lastTime)
	}

	// Validate the full row before touching the database.
	for name := range cols {
		if _, ok := w.byName[name]; !ok {
			return fmt.Errorf("checkpoint: WriteRow with unknown column %q", name)
		}
	}
	for i := range w.columns {
		data, ok := cols[w.columns[i].Name]
		if !ok {
			return fmt.Errorf("checkpoint: WriteRow missing column %q", w.columns[i].Name)
		}
		if w.rowLen == 0 {
			w.rowLen = len(data)
		}
		if len(data) != w.rowLen {
			return fmt.Errorf("checkpoint: column %q has %d samples, expected %d",
				w.columns[i].Name, len(data), w.rowLen)
		}
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("write row: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq := w.nextSeq
	if _, err := tx.Exec(`
		INSERT INTO frames (seq, time) VALUES (?, ?)
	`, seq, time); err != nil {
		return fmt.Errorf("write row: insert frame: %w", err)
	}
	for i := range w.columns {
		if _, err := tx.Exec(`
			INSERT INTO samples (frame_seq, column_id, data) VALUES (?, ?, ?)
		`, seq, w.columns[i].ID, packFloat64s(cols[w.columns[i].Name])); err != nil {
			return fmt.Errorf("write row: insert samples for %q: %w", w.columns[i].Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write row: commit: %w", err)
	}

	w.nextSeq++
	w.lastTime, w.hasLast = time, true
	return nil
}

// LastTime returns the time of the last stored frame. The second return is
// false when the database holds no frames.
func (w *Writer) LastTime() (float64, bool, error) {
	var t sql.NullFloat64
	if err := w.db.QueryRow(`
		SELECT MAX(time) FROM frames
	`).Scan(&t); err != nil {
		return 0, false, fmt.Errorf("query last time: %w", err)
	}
	return t.Float64, t.Valid, nil
}

// Columns returns the registry in definition order.
func (w *Writer) Columns() []Column {
	out := make([]Column, len(w.columns))
	copy(out, w.columns)
	return out
}

// Path returns the database file path.
func (w *Writer) Path() string { return w.path }

// Close closes the database. Safe to call more than once.
func (w *Writer) Close() error {
	if w.db == nil {
		return nil
	}
	db := w.db
	w.db = nil
	return db.Close()
}
