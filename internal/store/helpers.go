package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
)

// conversationDocs is the JSON-encoded column form of a conversation.
type conversationDocs struct {
	steps      string
	answers    string
	escalation string
}

// marshalConversation encodes the JSON-typed columns of a conversation.
func marshalConversation(c models.Conversation) (conversationDocs, error) {
	steps, err := json.Marshal(c.Steps)
	if err != nil {
		return conversationDocs{}, fmt.Errorf("failed to marshal steps: %w", err)
	}
	answers := c.Answers
	if answers == nil {
		answers = models.AnswerRecord{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return conversationDocs{}, fmt.Errorf("failed to marshal answers: %w", err)
	}
	escalation, err := json.Marshal(c.Escalation)
	if err != nil {
		return conversationDocs{}, fmt.Errorf("failed to marshal escalation state: %w", err)
	}
	return conversationDocs{
		steps:      string(steps),
		answers:    string(answersJSON),
		escalation: string(escalation),
	}, nil
}

// unmarshalConversation decodes the JSON-typed columns back into a conversation.
func unmarshalConversation(c *models.Conversation, docs conversationDocs) error {
	if err := json.Unmarshal([]byte(docs.steps), &c.Steps); err != nil {
		return fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	if err := json.Unmarshal([]byte(docs.answers), &c.Answers); err != nil {
		return fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	if err := json.Unmarshal([]byte(docs.escalation), &c.Escalation); err != nil {
		return fmt.Errorf("failed to unmarshal escalation state: %w", err)
	}
	return nil
}

// scanConversation scans a conversation from sql.Rows.
func scanConversation(rows *sql.Rows) (*models.Conversation, error) {
	var c models.Conversation
	var docs conversationDocs
	var recordID sql.NullString
	err := rows.Scan(&c.ID, &c.UserID, &c.Template, &docs.steps, &docs.answers,
		&docs.escalation, &c.Submitted, &recordID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan conversation failed: %w", err)
	}
	c.RecordID = recordID.String
	if err := unmarshalConversation(&c, docs); err != nil {
		return nil, err
	}
	return &c, nil
}

// scanConversationRow scans a conversation from a single sql.Row.
// sql.ErrNoRows passes through for the caller to translate.
func scanConversationRow(row *sql.Row) (*models.Conversation, error) {
	var c models.Conversation
	var docs conversationDocs
	var recordID sql.NullString
	err := row.Scan(&c.ID, &c.UserID, &c.Template, &docs.steps, &docs.answers,
		&docs.escalation, &c.Submitted, &recordID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.RecordID = recordID.String
	if err := unmarshalConversation(&c, docs); err != nil {
		return nil, err
	}
	return &c, nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
