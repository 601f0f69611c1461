// Package store provides storage backends for conversations and support cases.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveConversation(c models.Conversation) error {
	docs, err := marshalConversation(c)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO conversations (id, user_id, template, steps, answers, escalation, submitted, record_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			steps = EXCLUDED.steps,
			answers = EXCLUDED.answers,
			escalation = EXCLUDED.escalation,
			submitted = EXCLUDED.submitted,
			record_id = EXCLUDED.record_id,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.UserID, string(c.Template), docs.steps, docs.answers, docs.escalation,
		c.Submitted, nilIfEmpty(c.RecordID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "conversationID", c.ID)
		return fmt.Errorf("failed to save conversation %s: %w", c.ID, err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "conversationID", c.ID, "steps", len(c.Steps))
	return nil
}

func (s *PostgresStore) GetConversation(id string) (*models.Conversation, error) {
	row := s.db.QueryRow(`SELECT id, user_id, template, steps, answers, escalation, submitted, record_id, created_at, updated_at
		FROM conversations WHERE id = $1`, id)
	c, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) ListConversationsByUser(userID string) ([]models.Conversation, error) {
	rows, err := s.db.Query(`SELECT id, user_id, template, steps, answers, escalation, submitted, record_id, created_at, updated_at
		FROM conversations WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore ListConversationsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversations for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			slog.Error("PostgresStore ListConversationsByUser scan failed", "error", err)
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteConversation(id string) error {
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteConversation failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SaveSupportCase(c models.SupportCase) error {
	_, err := s.db.Exec(`INSERT INTO support_cases (id, user_id, conversation_id, reason, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.ConversationID, c.Reason, c.Snapshot, c.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSupportCase failed", "error", err, "caseID", c.ID)
		return fmt.Errorf("failed to save support case %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListSupportCases() ([]models.SupportCase, error) {
	rows, err := s.db.Query(`SELECT id, user_id, conversation_id, reason, snapshot, created_at
		FROM support_cases ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListSupportCases query failed", "error", err)
		return nil, fmt.Errorf("failed to query support cases: %w", err)
	}
	defer rows.Close()

	var out []models.SupportCase
	for rows.Next() {
		var c models.SupportCase
		if err := rows.Scan(&c.ID, &c.UserID, &c.ConversationID, &c.Reason, &c.Snapshot, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan support case row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate support case rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
