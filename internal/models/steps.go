// Package models defines conversation step structures.
//
// The step list is the audit trail of an interview: append-only and
// monotonically growing. Steps are a discriminated union over StepKind with
// kind-specific payloads; exhaustive switching over StepKind is the intended
// consumption pattern.
package models

import "time"

// StepKind discriminates the conversation step union.
type StepKind string

const (
	// StepBotMessage is a plain message from the engine to the user.
	StepBotMessage StepKind = "bot-message"
	// StepAwaitingInput waits for a free-text answer to a field.
	StepAwaitingInput StepKind = "awaiting-input"
	// StepAwaitingConfirmation presents a sanitized value for accept/redo.
	StepAwaitingConfirmation StepKind = "awaiting-confirmation"
	// StepAwaitingPicker waits on a field-kind-specific picker
	// (geo, date, availability, video, promo).
	StepAwaitingPicker StepKind = "awaiting-special-picker"
	// StepJobTitleConfirmation presents a resolved taxonomy title for accept/reject.
	StepJobTitleConfirmation StepKind = "job-title-confirmation"
	// StepTypingIndicator marks a suspending operation in flight.
	StepTypingIndicator StepKind = "typing-indicator"
	// StepSummary aggregates the finished AnswerRecord for final review.
	StepSummary StepKind = "summary"
	// StepEscalated is the terminal step after escalation, offering manual entry.
	StepEscalated StepKind = "escalated"
)

// IsValidStepKind checks if the given step kind is supported.
func IsValidStepKind(k StepKind) bool {
	switch k {
	case StepBotMessage, StepAwaitingInput, StepAwaitingConfirmation, StepAwaitingPicker,
		StepJobTitleConfirmation, StepTypingIndicator, StepSummary, StepEscalated:
		return true
	default:
		return false
	}
}

// AwaitsUser reports whether a step of this kind requires user action to
// complete. Used to enforce the at-most-one-active-step invariant.
func (k StepKind) AwaitsUser() bool {
	switch k {
	case StepAwaitingInput, StepAwaitingConfirmation, StepAwaitingPicker,
		StepJobTitleConfirmation, StepSummary:
		return true
	default:
		return false
	}
}

// ConfirmationPayload carries the values shown on a confirmation step.
type ConfirmationPayload struct {
	SanitizedValue any    `json:"sanitized_value"`
	OriginalValue  string `json:"original_value"`
	NaturalSummary string `json:"natural_summary,omitempty"`
}

// TitleSuggestionPayload carries a resolved job title awaiting accept/reject.
type TitleSuggestionPayload struct {
	Title        string   `json:"title"`
	Confidence   int      `json:"confidence"` // 0-100
	MatchedTerms []string `json:"matched_terms,omitempty"`
	IsFallback   bool     `json:"is_fallback"`
	OriginalText string   `json:"original_text"`
}

// SummaryPayload carries the aggregated answers shown on the summary step.
type SummaryPayload struct {
	Answers AnswerRecord `json:"answers"`
}

// EscalatedPayload carries the terminal escalation details.
type EscalatedPayload struct {
	CaseID string `json:"case_id,omitempty"`
	Reason string `json:"reason"`
}

// ConversationStep is one entry in the append-only step list. Exactly one of
// the payload pointers is non-nil for kinds that carry a payload.
type ConversationStep struct {
	ID        string    `json:"id"`
	Kind      StepKind  `json:"kind"`
	Field     string    `json:"field,omitempty"` // field name this step belongs to, if any
	Message   string    `json:"message,omitempty"`
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created_at"`

	Confirmation    *ConfirmationPayload    `json:"confirmation,omitempty"`
	TitleSuggestion *TitleSuggestionPayload `json:"title_suggestion,omitempty"`
	Summary         *SummaryPayload         `json:"summary,omitempty"`
	Escalated       *EscalatedPayload       `json:"escalated,omitempty"`
}

// ValidationVerdict is the output of the field validator. Ephemeral; not
// persisted beyond the step that consumed it.
type ValidationVerdict struct {
	Sufficient     bool   `json:"sufficient"`
	Clarification  string `json:"clarification,omitempty"`
	Sanitized      any    `json:"sanitized,omitempty"`
	NaturalSummary string `json:"natural_summary,omitempty"`
	Extracted      string `json:"extracted,omitempty"` // raw JSON from the remote classifier
}

// EscalationState tracks repeated irrelevance within one conversation.
// The count is monotonic for the conversation's lifetime: an intervening valid
// answer does not reset it, so the threshold cannot be evaded by alternating
// valid and unproductive turns. Terminal once Escalated is set.
type EscalationState struct {
	UnrelatedCount int    `json:"unrelated_count"`
	Escalated      bool   `json:"escalated"`
	CaseID         string `json:"case_id,omitempty"`
}

// Conversation is the persistent record of one interview.
type Conversation struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	Template   TemplateType       `json:"template"`
	Steps      []ConversationStep `json:"steps"`
	Answers    AnswerRecord       `json:"answers"`
	Escalation EscalationState    `json:"escalation"`
	Submitted  bool               `json:"submitted"`
	RecordID   string             `json:"record_id,omitempty"` // id returned by the submission collaborator
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// ActiveStep returns the single incomplete step awaiting user action, or nil.
func (c *Conversation) ActiveStep() *ConversationStep {
	for i := len(c.Steps) - 1; i >= 0; i-- {
		s := &c.Steps[i]
		if !s.Complete && s.Kind.AwaitsUser() {
			return s
		}
	}
	return nil
}

// StepByID returns the step with the given id, or nil.
func (c *Conversation) StepByID(id string) *ConversationStep {
	for i := range c.Steps {
		if c.Steps[i].ID == id {
			return &c.Steps[i]
		}
	}
	return nil
}

// SupportCase is the persistent record of an escalation hand-off.
type SupportCase struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Reason         string    `json:"reason"`
	Snapshot       string    `json:"snapshot"` // JSON snapshot of the conversation at escalation time
	CreatedAt      time.Time `json:"created_at"`
}
