// Package store provides storage backends for conversations and support cases.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; the containing
// directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveConversation(c models.Conversation) error {
	docs, err := marshalConversation(c)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO conversations (id, user_id, template, steps, answers, escalation, submitted, record_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			steps = excluded.steps,
			answers = excluded.answers,
			escalation = excluded.escalation,
			submitted = excluded.submitted,
			record_id = excluded.record_id,
			updated_at = excluded.updated_at`,
		c.ID, c.UserID, string(c.Template), docs.steps, docs.answers, docs.escalation,
		c.Submitted, nilIfEmpty(c.RecordID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "conversationID", c.ID)
		return fmt.Errorf("failed to save conversation %s: %w", c.ID, err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "conversationID", c.ID, "steps", len(c.Steps))
	return nil
}

func (s *SQLiteStore) GetConversation(id string) (*models.Conversation, error) {
	row := s.db.QueryRow(`SELECT id, user_id, template, steps, answers, escalation, submitted, record_id, created_at, updated_at
		FROM conversations WHERE id = ?`, id)
	c, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) ListConversationsByUser(userID string) ([]models.Conversation, error) {
	rows, err := s.db.Query(`SELECT id, user_id, template, steps, answers, escalation, submitted, record_id, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListConversationsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversations for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			slog.Error("SQLiteStore ListConversationsByUser scan failed", "error", err)
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteConversation(id string) error {
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteConversation failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SaveSupportCase(c models.SupportCase) error {
	_, err := s.db.Exec(`INSERT INTO support_cases (id, user_id, conversation_id, reason, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ConversationID, c.Reason, c.Snapshot, c.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSupportCase failed", "error", err, "caseID", c.ID)
		return fmt.Errorf("failed to save support case %s: %w", c.ID, err)
	}
	slog.Debug("SQLiteStore SaveSupportCase succeeded", "caseID", c.ID, "conversationID", c.ConversationID)
	return nil
}

func (s *SQLiteStore) ListSupportCases() ([]models.SupportCase, error) {
	rows, err := s.db.Query(`SELECT id, user_id, conversation_id, reason, snapshot, created_at
		FROM support_cases ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("SQLiteStore ListSupportCases query failed", "error", err)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
