// Package sqlite stores scenes in a single-file SQLite database using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/theatre/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS scenes (
	name       TEXT PRIMARY KEY,
	spec       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store implements ports.SceneStore on top of database/sql.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection and ensures the schema exists.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create scenes table: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts or replaces the scene.
func (s *Store) Save(ctx context.Context, name string, scene *domain.SceneSpec) error {
	if name == "" {
		return fmt.Errorf("scene name cannot be empty")
	}
	data, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("failed to marshal scene: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scenes (name, spec, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET spec = excluded.spec, updated_at = excluded.updated_at`,
		name, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save scene: %w", err)
	}
	return nil
}

// Load retrieves the scene.
func (s *Store) Load(ctx context.Context, name string) (*domain.SceneSpec, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT spec FROM scenes WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSceneNotFound
		}
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}

	var scene domain.SceneSpec
	if err := json.Unmarshal([]byte(data), &scene); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scene: %w", err)
	}
	return &scene, nil
}

// Delete removes the scene; deleting a missing scene is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scenes WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete scene: %w", err)
	}
	return nil
}

// List returns the scene names in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM scenes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
