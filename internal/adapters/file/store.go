package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// ErrInvalidID is returned for project IDs that are not plain file names.
var ErrInvalidID = errors.New("invalid project id")

// Store implements ports.ProjectStore using the local filesystem.
// It stores projects as JSON files in a configured directory.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".lattice/projects".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".lattice", "projects")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(projectID string) (string, error) {
	if projectID == "" || projectID != filepath.Base(projectID) || strings.HasPrefix(projectID, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, projectID)
	}
	return filepath.Join(s.BasePath, projectID+".json"), nil
}

// Save persists the project to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, project *domain.Project) error {
	destPath, err := s.path(project.ID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure project directory: %w", err)
	}

	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	// 1. Create Temp File in the same directory (atomic rename needs one filesystem)
	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-"+project.ID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	// 3. Fsync to ensure durability
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close File (cannot rename open file on Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Rename. On Windows os.Rename fails if dest exists, so remove it first;
	// the short window without a file beats a torn write.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing project file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load retrieves the project from its JSON file.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	filePath, err := s.path(projectID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var project domain.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return &project, nil
}

// Delete removes the project file.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	filePath, err := s.path(projectID)
	if err != nil {
		return err
	}

	err = os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete project file: %w", err)
	}
	return nil
}

// List returns all stored project IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		projects = append(projects, strings.TrimSuffix(name, ".json"))
	}
	slices.Sort(projects)
	return projects, nil
}
