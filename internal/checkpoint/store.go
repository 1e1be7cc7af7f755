// Package checkpoint persists pipeline progress for one workspace in SQLite
// so that an interrupted run resumes after its last completed stage.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/beetlebugorg/basemerge/internal/conflate"
	_ "modernc.org/sqlite"
)

// FileName is the checkpoint database name inside a workspace.
const FileName = "checkpoints.db"

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Checkpoint records one completed stage.
type Checkpoint struct {
	Stage       string
	Output      string // layer or table written by the stage
	Rows        int
	Elapsed     time.Duration
	Warning     string // soft validation failure, e.g. zero rows
	CompletedAt time.Time
}

// Store is a SQLite-backed checkpoint log.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open opens or creates the checkpoint database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	// a single connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		stage TEXT PRIMARY KEY,
		output TEXT NOT NULL,
		rows INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		warning TEXT NOT NULL DEFAULT '',
		completed_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS intersections (
		name TEXT NOT NULL,
		seq INTEGER NOT NULL,
		base_id INTEGER NOT NULL,
		new_id INTEGER NOT NULL,
		area REAL NOT NULL,
		percent REAL NOT NULL,
		base_area REAL NOT NULL,
		new_area REAL NOT NULL,
		relationship TEXT NOT NULL,
		keys_json TEXT,
		base_fields_json TEXT,
		new_fields_json TEXT,
		PRIMARY KEY (name, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_intersections_base ON intersections(name, base_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Mark records cp, replacing any earlier checkpoint for the same stage.
func (s *Store) Mark(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp.CompletedAt.IsZero() {
		cp.CompletedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (stage, output, rows, elapsed_ms, warning, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(stage) DO UPDATE SET
			output = excluded.output,
			rows = excluded.rows,
			elapsed_ms = excluded.elapsed_ms,
			warning = excluded.warning,
			completed_at = excluded.completed_at`,
		cp.Stage, cp.Output, cp.Rows, cp.Elapsed.Milliseconds(), cp.Warning,
		cp.CompletedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record checkpoint %s: %w", cp.Stage, err)
	}
	return nil
}

// Get returns the checkpoint for stage. ok is false when the stage has not
// completed.
func (s *Store) Get(stage string) (cp Checkpoint, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`
		SELECT stage, output, rows, elapsed_ms, warning, completed_at
		FROM checkpoints WHERE stage = ?`, stage)
	cp, err = scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

// List returns every checkpoint ordered by completion time.
func (s *Store) List() ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT stage, output, rows, elapsed_ms, warning, completed_at
		FROM checkpoints ORDER BY completed_at, stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Reset removes the checkpoints for the given stages, or all checkpoints and
// stored intersection tables when none are given.
func (s *Store) Reset(stages ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(stages) == 0 {
		if _, err := s.db.Exec(`DELETE FROM checkpoints; DELETE FROM intersections;`); err != nil {
			return fmt.Errorf("failed to reset checkpoints: %w", err)
		}
		return nil
	}
	for _, st := range stages {
		if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE stage = ?`, st); err != nil {
			return fmt.Errorf("failed to reset checkpoint %s: %w", st, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckpoint(r scanner) (Checkpoint, error) {
	var cp Checkpoint
	var elapsedMS int64
	var completed string
	if err := r.Scan(&cp.Stage, &cp.Output, &cp.Rows, &elapsedMS, &cp.Warning, &completed); err != nil {
		return Checkpoint{}, err
	}
	cp.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	t, err := time.Parse(timeLayout, completed)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint %s: bad timestamp %q: %w", cp.Stage, completed, err)
	}
	cp.CompletedAt = t
	return cp, nil
}

type keys struct {
	Base interface{} `json:"base,omitempty"`
	New  interface{} `json:"new,omitempty"`
}

// SaveIntersections stores recs under name, replacing any earlier table.
func (s *Store) SaveIntersections(name string, recs []conflate.Intersection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM intersections WHERE name = ?`, name); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO intersections (name, seq, base_id, new_id, area, percent, base_area, new_area,
			relationship, keys_json, base_fields_json, new_fields_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range recs {
		k, err := json.Marshal(keys{Base: r.BaseKey, New: r.NewKey})
		if err != nil {
			return fmt.Errorf("intersection %d/%d: %w", r.BaseID, r.NewID, err)
		}
		bf, err := json.Marshal(r.BaseFields)
		if err != nil {
			return fmt.Errorf("intersection %d/%d: %w", r.BaseID, r.NewID, err)
		}
		nf, err := json.Marshal(r.NewFields)
		if err != nil {
			return fmt.Errorf("intersection %d/%d: %w", r.BaseID, r.NewID, err)
		}
		if _, err := stmt.Exec(name, i, r.BaseID, r.NewID, r.Area, r.Percent, r.BaseArea, r.NewArea,
			r.Relationship.String(), string(k), string(bf), string(nf)); err != nil {
			return fmt.Errorf("failed to store intersection %d/%d: %w", r.BaseID, r.NewID, err)
		}
	}
	return tx.Commit()
}

// LoadIntersections returns the records stored under name in their saved
// order. JSON numbers in key and field columns come back as float64.
func (s *Store) LoadIntersections(name string) ([]conflate.Intersection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT base_id, new_id, area, percent, base_area, new_area, relationship,
			keys_json, base_fields_json, new_fields_json
		FROM intersections WHERE name = ? ORDER BY seq`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []conflate.Intersection
	for rows.Next() {
		var r conflate.Intersection
		var rel string
		var k, bf, nf sql.NullString
		if err := rows.Scan(&r.BaseID, &r.NewID, &r.Area, &r.Percent, &r.BaseArea, &r.NewArea,
			&rel, &k, &bf, &nf); err != nil {
			return nil, err
		}
		if r.Relationship, err = conflate.ParseRelationship(rel); err != nil {
			return nil, err
		}
		var kk keys
		if err := unmarshalOptional(k, &kk); err != nil {
			return nil, err
		}
		r.BaseKey, r.NewKey = kk.Base, kk.New
		if err := unmarshalOptional(bf, &r.BaseFields); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(nf, &r.NewFields); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func unmarshalOptional(s sql.NullString, v interface{}) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
