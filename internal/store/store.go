// Package store provides session storage backends for Mind Scan.
//
// The default backend is in-memory, matching the product's
// single-session-demo scope. SQLite and Postgres backends are available for
// deployments that want sessions to survive a restart; the backend is chosen
// from the DSN shape.
package store

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/mindscan-ai/mindscan/internal/models"
)

// Store defines the session persistence interface.
type Store interface {
	// SaveSession inserts or replaces a session by ID.
	SaveSession(sess models.Session) error
	// GetSession retrieves a session by ID, or nil when absent.
	GetSession(id string) (*models.Session, error)
	// DeleteSession removes a session by ID. Deleting an absent session is not an error.
	DeleteSession(id string) error
	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType inspects a DSN and reports "postgres" or "sqlite".
// Anything that does not look like a Postgres connection string is treated
// as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps sessions in a mutex-guarded map. It is the default
// backend; contents are lost on process exit, which is the documented scope.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("store.NewInMemoryStore: creating in-memory session store")
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

// SaveSession inserts or replaces a session by ID.
func (s *InMemoryStore) SaveSession(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// GetSession retrieves a session by ID, or nil when absent.
func (s *InMemoryStore) GetSession(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

// DeleteSession removes a session by ID.
func (s *InMemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
