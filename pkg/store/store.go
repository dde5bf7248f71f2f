// Package store keeps a content-addressed library of programs in SQLite.
// Programs are keyed by the SHA-256 of their serialized form, so the same
// program stored twice occupies one row, and names are mutable labels
// pointing at immutable content.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/ferrite-vm/ferrite/pkg/vm"
)

var log = commonlog.GetLogger("ferrite.store")

// ErrNotFound indicates the requested program doesn't exist.
var ErrNotFound = errors.New("program not found")

// Store is a SQLite-backed program library.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Entry describes one stored program.
type Entry struct {
	Hash         string
	Name         string
	Instructions int
	CreatedAt    time.Time
}

// Open opens (or creates) the program library at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		hash TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		instructions INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		data BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("program store opened at %s", path)
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Hash computes the content address of a program.
func Hash(p vm.Program) string {
	sum := sha256.Sum256(p.Serialize())
	return hex.EncodeToString(sum[:])
}

// Put stores a program under the given name and returns its content hash.
// Storing identical content again just updates the name.
func (s *Store) Put(name string, p vm.Program) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := p.Serialize()
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	_, err := s.db.Exec(
		`INSERT INTO programs (hash, name, instructions, created_at, data)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET name = excluded.name`,
		hash, name, len(p), time.Now().UTC().Format(time.RFC3339), data,
	)
	if err != nil {
		return "", fmt.Errorf("storing program: %w", err)
	}
	log.Debugf("stored program %q as %s (%d instructions)", name, hash[:12], len(p))
	return hash, nil
}

// Get retrieves a program by content hash.
func (s *Store) Get(hash string) (vm.Program, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM programs WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}
	return vm.DeserializeProgram(data)
}

// GetByName retrieves the most recently stored program with the given name.
func (s *Store) GetByName(name string) (vm.Program, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM programs WHERE name = ? ORDER BY created_at DESC, hash LIMIT 1",
		name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}
	return vm.DeserializeProgram(data)
}

// List returns all stored programs ordered by creation time, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT hash, name, instructions, created_at FROM programs ORDER BY created_at DESC, hash",
	)
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.Hash, &e.Name, &e.Instructions, &created); err != nil {
			return nil, fmt.Errorf("scanning program row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a program by content hash.
func (s *Store) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM programs WHERE hash = ?", hash)
	if err != nil {
		return fmt.Errorf("deleting program: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
