package domain

import (
	"encoding/json"
	"time"
)

// SyncState is the phase of a bridge session's control loop.
type SyncState string

const (
	StateIdle      SyncState = "idle"      // Waiting for the next message
	StateReplacing SyncState = "replacing" // Applying a full-tree replace
	StateMutating  SyncState = "mutating"  // Applying a discrete command
	StateRendering SyncState = "rendering" // Building and delivering a frame
)

// Project is the durable record of one edited document.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Tree holds the serialized forest exactly as produced by Tree.MarshalJSON.
	Tree json.RawMessage `json:"tree"`

	// Metadata allows for extensible key-value pairs (author, theme, ...).
	Metadata map[string]string `json:"metadata,omitempty"`

	// Revision is incremented by the persistence gate on every write.
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates an empty project record.
func NewProject(id, name string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:        id,
		Name:      name,
		Tree:      json.RawMessage("[]"),
		Metadata:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Document parses the project's tree.
func (p *Project) Document(opts ...ParseOption) (*Tree, error) {
	if len(p.Tree) == 0 {
		return &Tree{}, nil
	}
	return ParseTree(p.Tree, opts...)
}
