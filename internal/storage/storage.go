package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/emotionink/engine/pkg/session"
)

// Storage defines session persistence. The API is stateless across
// requests; each operation loads the session, mutates it through the
// reconciler, and saves it back.
type Storage interface {
	// Ping tests the backing connection.
	Ping(ctx context.Context) error

	// Close closes the backing connection.
	Close() error

	// SaveSession persists a session snapshot.
	SaveSession(ctx context.Context, s *session.Session) error

	// LoadSession retrieves a session by ID. Returns nil if it does not
	// exist.
	LoadSession(ctx context.Context, id uuid.UUID) (*session.Session, error)

	// DeleteSession removes a session by ID.
	DeleteSession(ctx context.Context, id uuid.UUID) error
}
