// Package store persists validated evaluations in a SQLite journal.
// It stores the canonical raw document, not the computed result, and every
// load goes back through the airlock: persistence never bypasses validation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"arbiter/internal/airlock"
	"arbiter/internal/domain"
	"arbiter/internal/engine"
	"arbiter/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Journal is the evaluation store.
type Journal struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
	log  *zap.Logger
}

// Entry is one journal row summary.
type Entry struct {
	Name      string
	Winner    string
	Robust    bool
	CreatedAt time.Time
}

// Open initializes the SQLite journal at the given path, creating the
// parent directory and schema as needed.
func Open(path string) (*Journal, error) {
	log := logging.Get(logging.CategoryStore)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	j := &Journal{db: db, path: path, log: log}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("journal opened", zap.String("path", path))
	return j, nil
}

func (j *Journal) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS evaluations (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		document   TEXT NOT NULL,
		winner     TEXT NOT NULL,
		robust     INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return nil
}

// Save records a validated evaluation under a name, overwriting any earlier
// entry with the same name. Only the canonical document and a small result
// summary are stored.
func (j *Journal) Save(name string, ev *domain.Evaluation, report *engine.Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	document, err := json.Marshal(ev.ToDocument())
	if err != nil {
		return fmt.Errorf("failed to serialize evaluation: %w", err)
	}

	robust := 0
	if report.Sensitivity.IsRobust {
		robust = 1
	}
	_, err = j.db.Exec(`
		INSERT INTO evaluations (name, document, winner, robust) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			document = excluded.document,
			winner   = excluded.winner,
			robust   = excluded.robust,
			created_at = CURRENT_TIMESTAMP`,
		name, string(document), report.Winner(), robust)
	if err != nil {
		return fmt.Errorf("failed to save evaluation %q: %w", name, err)
	}
	j.log.Debug("evaluation saved", zap.String("name", name), zap.String("winner", report.Winner()))
	return nil
}

// Load reads a stored document and re-validates it through the airlock,
// reconstructing the Evaluation. A stored document that no longer validates
// is surfaced as the airlock failure, not papered over.
func (j *Journal) Load(name string) (*domain.Evaluation, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var document string
	err := j.db.QueryRow(`SELECT document FROM evaluations WHERE name = ?`, name).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no evaluation named %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation %q: %w", name, err)
	}

	doc, err := airlock.DecodeDocument(document)
	if err != nil {
		return nil, err
	}
	return airlock.Sanitize(doc)
}

// List returns summaries of all stored evaluations, newest first.
func (j *Journal) List() ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.Query(`
		SELECT name, winner, robust, created_at FROM evaluations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var robust int
		if err := rows.Scan(&e.Name, &e.Winner, &robust, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Robust = robust != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
