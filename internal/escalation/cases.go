// Package escalation provides the support-case hand-off used when a
// conversation crosses the escalation threshold.
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
)

// caseStore is the narrow persistence surface needed to record support cases.
type caseStore interface {
	SaveSupportCase(c models.SupportCase) error
}

// Notifier alerts on-call support that a case was opened. Implementations
// must be best-effort; a notification failure never blocks escalation.
type Notifier interface {
	NotifyCaseOpened(ctx context.Context, c models.SupportCase) error
}

// CaseOpener opens support cases and notifies on-call support.
type CaseOpener struct {
	store    caseStore
	notifier Notifier
}

// NewCaseOpener creates a case opener. The notifier may be nil, in which case
// cases are recorded without an alert.
func NewCaseOpener(store caseStore, notifier Notifier) *CaseOpener {
	return &CaseOpener{store: store, notifier: notifier}
}

// OpenCase records a support case for the given conversation snapshot and
// returns its id. Exactly one case is opened per escalation; callers guard
// against re-entry via EscalationState.Escalated.
func (o *CaseOpener) OpenCase(ctx context.Context, userID, conversationID, reason, snapshot string) (string, error) {
	c := models.SupportCase{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		Reason:         reason,
		Snapshot:       snapshot,
		CreatedAt:      time.Now(),
	}

	if err := o.store.SaveSupportCase(c); err != nil {
		slog.Error("escalation.OpenCase: failed to save support case", "error", err, "conversationID", conversationID)
		return "", fmt.Errorf("failed to save support case: %w", err)
	}
	slog.Info("escalation.OpenCase: support case opened", "caseID", c.ID, "conversationID", conversationID, "reason", reason)

	if o.notifier != nil {
		if err := o.notifier.NotifyCaseOpened(ctx, c); err != nil {
			// Best-effort: the case exists either way.
			slog.Warn("escalation.OpenCase: support notification failed", "error", err, "caseID", c.ID)
		}
	}

	return c.ID, nil
}
