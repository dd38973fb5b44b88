// Package session provides pluggable persistence for conversation sessions.
package session

import (
	"context"
	"errors"

	"github.com/haasonsaas/sage/pkg/models"
)

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = errors.New("session not found")

// Store is the persistence contract the core requires. Implementations must
// be safe for concurrent use.
type Store interface {
	// Save writes the session, inserting or replacing by id.
	Save(ctx context.Context, session *models.Session) error

	// Load returns the session by id, or ErrNotFound.
	Load(ctx context.Context, id string) (*models.Session, error)

	// List returns summaries of all stored sessions.
	List(ctx context.Context) ([]*models.Session, error)

	// Delete removes the session by id. Deleting an unknown id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Exists reports whether the session id is stored.
	Exists(ctx context.Context, id string) (bool, error)
}
