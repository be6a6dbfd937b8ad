package domain

import "github.com/google/uuid"

// IDGenerator produces unique node identifiers.
type IDGenerator func() string

// NewID returns a time-ordered UUIDv7 string.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
