// Package store provides storage backends for conversations and support cases.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backed stores for persistent deployments. All backends satisfy
// the Store interface; the engine never sees which one it is talking to.
package store

import (
	"sort"
	"sync"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
)

// Store is the persistence interface consumed by the conversation engine.
type Store interface {
	// SaveConversation inserts or replaces the conversation snapshot.
	SaveConversation(c models.Conversation) error
	// GetConversation returns the conversation with the given id, or
	// models.ErrConversationNotFound.
	GetConversation(id string) (*models.Conversation, error)
	// ListConversationsByUser returns every conversation belonging to a user,
	// newest first.
	ListConversationsByUser(userID string) ([]models.Conversation, error)
	// DeleteConversation removes a conversation. Missing ids are not an error.
	DeleteConversation(id string) error
	// SaveSupportCase persists an escalation hand-off record.
	SaveSupportCase(c models.SupportCase) error
	// ListSupportCases returns all open support cases, newest first.
	ListSupportCases() ([]models.SupportCase, error)
	// Close releases the backend resources.
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	DSN string
}

// Option configures store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string. For SQLite this is the
// database file path; for Postgres a connection URL or key/value DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore keeps everything in process memory. Safe for concurrent use.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	cases         map[string]models.SupportCase
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.Conversation),
		cases:         make(map[string]models.SupportCase),
	}
}

func (s *InMemoryStore) SaveConversation(c models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
	return nil
}

func (s *InMemoryStore) GetConversation(id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) ListConversationsByUser(userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	return nil
}

func (s *InMemoryStore) SaveSupportCase(c models.SupportCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[c.ID] = c
	return nil
}

func (s *InMemoryStore) ListSupportCases() ([]models.SupportCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SupportCase, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
