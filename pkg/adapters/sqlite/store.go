// Package sqlite persists projects in a SQLite database (pure Go driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	tree       BLOB NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	revision   INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS projects_updated ON projects(updated_at);
`

// Store implements ports.ProjectStore on a SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and ensures the schema exists.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the project.
func (s *Store) Save(ctx context.Context, project *domain.Project) error {
	meta, err := encodeMetadata(project.Metadata)
	if err != nil {
		return err
	}
	tree := []byte(project.Tree)
	if len(tree) == 0 {
		tree = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, tree, metadata, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			tree = excluded.tree,
			metadata = excluded.metadata,
			revision = excluded.revision,
			updated_at = excluded.updated_at`,
		project.ID, project.Name, tree, meta, project.Revision,
		project.CreatedAt.UnixNano(), project.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save project %q: %w", project.ID, err)
	}
	return nil
}

// Load retrieves a project.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	var (
		p                domain.Project
		tree             []byte
		meta             string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, tree, metadata, revision, created_at, updated_at FROM projects WHERE id = ?`,
		projectID,
	).Scan(&p.ID, &p.Name, &tree, &meta, &p.Revision, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %q: %w", projectID, err)
	}

	p.Tree = tree
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	if p.Metadata, err = decodeMetadata(meta); err != nil {
		return nil, fmt.Errorf("project %q: %w", projectID, err)
	}
	return &p, nil
}

// Delete removes the project.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete project %q: %w", projectID, err)
	}
	return nil
}

// List returns project IDs, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
