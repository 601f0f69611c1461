package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/escalation"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/store"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/taxonomy"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/templates"
)

// fieldValidator is the narrow validator surface the engine consumes.
type fieldValidator interface {
	Validate(ctx context.Context, field models.FieldSpec, rawValue any, prior models.AnswerRecord) models.ValidationVerdict
}

// titleResolver is the narrow taxonomy surface the engine consumes.
type titleResolver interface {
	Resolve(ctx context.Context, freeText string) (*taxonomy.Match, error)
}

// caseOpener is the narrow escalation hand-off surface the engine consumes.
type caseOpener interface {
	OpenCase(ctx context.Context, userID, conversationID, reason, snapshot string) (string, error)
}

// Opts holds optional engine collaborators.
type Opts struct {
	Submitter RecordSubmitter
	Geocoder  Geocoder
	Uploader  MediaUploader
}

// Option configures optional engine collaborators.
type Option func(*Opts)

// WithSubmitter sets the record submission collaborator.
func WithSubmitter(s RecordSubmitter) Option {
	return func(o *Opts) { o.Submitter = s }
}

// WithGeocoder sets the geocoding collaborator.
func WithGeocoder(g Geocoder) Option {
	return func(o *Opts) { o.Geocoder = g }
}

// WithUploader sets the media upload collaborator.
func WithUploader(u MediaUploader) Option {
	return func(o *Opts) { o.Uploader = u }
}

// Engine is the conversation state machine. One Engine serves all
// conversations; per-conversation serialization is enforced by the in-flight
// guard, so methods are safe for concurrent use.
type Engine struct {
	store     store.Store
	templates *templates.Registry
	validator fieldValidator
	resolver  titleResolver
	monitor   *escalation.Monitor
	cases     caseOpener
	submitter RecordSubmitter
	geocoder  Geocoder
	uploader  MediaUploader

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewEngine creates a conversation engine. Optional collaborators default to
// local stand-alone implementations.
func NewEngine(st store.Store, reg *templates.Registry, validator fieldValidator, resolver titleResolver, monitor *escalation.Monitor, cases caseOpener, opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Submitter == nil {
		cfg.Submitter = LocalRecordSubmitter{}
	}
	if cfg.Uploader == nil {
		cfg.Uploader = LocalMediaUploader{}
	}
	return &Engine{
		store:     st,
		templates: reg,
		validator: validator,
		resolver:  resolver,
		monitor:   monitor,
		cases:     cases,
		submitter: cfg.Submitter,
		geocoder:  cfg.Geocoder,
		uploader:  cfg.Uploader,
		inFlight:  make(map[string]bool),
	}
}

// acquire claims the per-conversation in-flight slot.
func (e *Engine) acquire(conversationID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[conversationID] {
		return models.ErrOperationInFlight
	}
	e.inFlight[conversationID] = true
	return nil
}

func (e *Engine) release(conversationID string) {
	e.mu.Lock()
	delete(e.inFlight, conversationID)
	e.mu.Unlock()
}

// Start creates a conversation for the given template and emits the welcome
// message plus the first awaiting step.
func (e *Engine) Start(ctx context.Context, userID string, template models.TemplateType) (*models.Conversation, error) {
	tmpl, err := e.templates.Get(template)
	if err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}

	now := time.Now()
	c := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Template:  template,
		Answers:   models.AnswerRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	appendBotMessage(c, fmt.Sprintf("Hi! %s — I'll ask you a few questions and we'll build it together.", tmpl.Title))
	e.askNextField(c, tmpl)

	if err := e.save(c); err != nil {
		return nil, err
	}
	slog.Info("Engine.Start: conversation started", "conversationID", c.ID, "template", template, "userID", userID)
	return c, nil
}

// Resume reloads a conversation and, if nothing is awaiting the user, re-asks
// the first unsatisfied field. Supports picking up a partially-filled
// interview after a restart.
func (e *Engine) Resume(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if err := e.acquire(conversationID); err != nil {
		return nil, err
	}
	defer e.release(conversationID)

	c, err := e.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if c.Escalation.Escalated || c.Submitted {
		return c, nil
	}
	if c.ActiveStep() != nil {
		return c, nil
	}

	tmpl, err := e.templates.Get(c.Template)
	if err != nil {
		return nil, err
	}
	e.askNextField(c, tmpl)
	if err := e.save(c); err != nil {
		return nil, err
	}
	slog.Info("Engine.Resume: conversation resumed", "conversationID", c.ID)
	return c, nil
}

// Get returns the conversation without mutating it.
func (e *Engine) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	return e.store.GetConversation(conversationID)
}

// Submit is the sole raw-answer entry point. It completes the awaiting step,
// runs the escalation monitor, then validates the value and appends either a
// clarification self-loop, a job-title confirmation, or a generic
// confirmation step. Submitting an already-complete step is an idempotent
// no-op.
func (e *Engine) Submit(ctx context.Context, conversationID, stepID string, rawValue any) (*models.Conversation, error) {
	if err := e.acquire(conversationID); err != nil {
		return nil, err
	}
	defer e.release(conversationID)

	c, err := e.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if c.Escalation.Escalated {
		return nil, models.ErrConversationEscalated
	}

	step := c.StepByID(stepID)
	if step == nil {
		return nil, models.ErrStepNotFound
	}
	if step.Complete {
		slog.Debug("Engine.Submit: step already complete, no-op", "conversationID", c.ID, "stepID", stepID)
		return c, nil
	}
	if step.Kind != models.StepAwaitingInput && step.Kind != models.StepAwaitingPicker {
		return nil, fmt.Errorf("step %s (%s) does not accept a raw answer: %w", stepID, step.Kind, models.ErrStepNotFound)
	}

	tmpl, err := e.templates.Get(c.Template)
	if err != nil {
		return nil, err
	}
	field := tmpl.FieldByName(step.Field)
	if field == nil {
		return nil, fmt.Errorf("step %s: %w: %s", stepID, models.ErrFieldNotFound, step.Field)
	}

	// The escalation monitor runs before validation on every turn.
	if text, ok := rawValue.(string); ok {
		if a := e.monitor.Assess(text, field.Prompt); a.Flagged {
			c.Escalation.UnrelatedCount++
			slog.Info("Engine.Submit: turn flagged", "conversationID", c.ID, "field", field.Name,
				"reason", a.Reason, "unrelatedCount", c.Escalation.UnrelatedCount)
			if c.Escalation.UnrelatedCount >= escalation.Threshold {
				return e.escalate(ctx, c, step, a.Reason)
			}
		}
	}

	step.Complete = true
	indicator := appendStep(c, models.ConversationStep{Kind: models.StepTypingIndicator, Field: field.Name})

	// Free-text location input is geocoded before validation when a
	// geocoder is configured.
	if field.Kind == models.FieldKindGeoLocation && e.geocoder != nil {
		if text, ok := rawValue.(string); ok && text != "" {
			if gp, err := e.geocoder.Geocode(ctx, text); err == nil {
				rawValue = gp
			} else {
				slog.Warn("Engine.Submit: geocoding failed, validating raw text", "conversationID", c.ID, "error", err)
			}
		}
	}

	verdict := e.validator.Validate(ctx, *field, rawValue, c.Answers)
	indicator.Complete = true

	if !verdict.Sufficient {
		// Self-loop: same FieldSpec, fresh step id.
		appendBotMessage(c, verdict.Clarification)
		e.askField(c, *field)
		slog.Info("Engine.Submit: insufficient answer, re-asking field", "conversationID", c.ID, "field", field.Name)
		if err := e.save(c); err != nil {
			return nil, err
		}
		return c, nil
	}

	if appended := e.maybeSuggestTitle(ctx, c, *field, verdict); !appended {
		appendStep(c, models.ConversationStep{
			Kind:  models.StepAwaitingConfirmation,
			Field: field.Name,
			Confirmation: &models.ConfirmationPayload{
				SanitizedValue: verdict.Sanitized,
				OriginalValue:  asText(rawValue),
				NaturalSummary: verdict.NaturalSummary,
			},
		})
	}

	if err := e.save(c); err != nil {
		return nil, err
	}
	slog.Info("Engine.Submit: answer validated", "conversationID", c.ID, "field", field.Name)
	return c, nil
}

// maybeSuggestTitle runs the taxonomy resolver for title-bearing fields and
// appends a job-title-confirmation step when a match clears the confidence
// gate. Reports whether a step was appended.
func (e *Engine) maybeSuggestTitle(ctx context.Context, c *models.Conversation, field models.FieldSpec, verdict models.ValidationVerdict) bool {
	if !field.ResolveTitle || e.resolver == nil {
		return false
	}
	text, ok := verdict.Sanitized.(string)
	if !ok || text == "" {
		return false
	}

	match, err := e.resolver.Resolve(ctx, text)
	if err != nil {
		slog.Warn("Engine.maybeSuggestTitle: taxonomy resolution failed", "conversationID", c.ID, "field", field.Name, "error", err)
		return false
	}
	if match == nil {
		return false
	}

	appendStep(c, models.ConversationStep{
		Kind:  models.StepJobTitleConfirmation,
		Field: field.Name,
		TitleSuggestion: &models.TitleSuggestionPayload{
			Title:        match.Title,
			Confidence:   match.Confidence,
			MatchedTerms: match.MatchedTerms,
			IsFallback:   match.IsFallback,
			OriginalText: text,
		},
	})
	slog.Info("Engine.maybeSuggestTitle: title suggested", "conversationID", c.ID, "field", field.Name,
		"title", match.Title, "confidence", match.Confidence, "fallback", match.IsFallback)
	return true
}

// Confirm writes the accepted value into the answer record, completes the
// confirmation step, and advances the cursor: the next unsatisfied field is
// asked, or the summary step is emitted when none remain.
func (e *Engine) Confirm(ctx context.Context, conversationID, fieldName string, value any) (*models.Conversation, error) {
	if err := e.acquire(conversationID); err != nil {
		return nil, err
	}
	defer e.release(conversationID)

	c, err := e.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if c.Escalation.Escalated {
		return nil, models.ErrConversationEscalated
	}

	tmpl, err := e.templates.Get(c.Template)
	if err != nil {
		return nil, err
	}
	if tmpl.FieldByName(fieldName) == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrFieldNotFound, fieldName)
	}

	step, err := activeConfirmation(c, fieldName)
	if err != nil {
		return nil, err
	}

	step.Complete = true
	c.Answers[fieldName] = value
	slog.Info("Engine.Confirm: answer accepted", "conversationID", c.ID, "field", fieldName)

	e.askNextField(c, tmpl)
	if err := e.save(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Reformulate discards the pending value for a field and re-asks it without
// advancing the cursor. The confirmation step is completed with no value
// written.
func (e *Engine) Reformulate(ctx context.Context, conversationID, fieldName string) (*models.Conversation, error) {
	if err := e.acquire(conversationID); err != nil {
		return nil, err
	}
	defer e.release(conversationID)

	c, err := e.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if c.Escalation.Escalated {
		return nil, models.ErrConversationEscalated
	}

	tmpl, err := e.templates.Get(c.Template)
	if err != nil {
		return nil, err
	}
	field := tmpl.FieldByName(fieldName)
	if field == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrFieldNotFound, fieldName)
	}

	step, err := activeConfirmation(c, fieldName)
	if err != nil {
		return nil, err
	}

	step.Complete = true
	delete(c.Answers, fieldName)

	appendBotMessage(c, "No problem, let's try that one again.")
	e.askField(c, *field)
	slog.Info("Engine.Reformulate: field re-opened", "conversationID", c.ID, "field", fieldName)

	if err := e.save(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Finalize completes the summary step and hands the finished record to the
// submission collaborator. On submission failure the summary stays active so
// the user can retry.
func (e *Engine) Finalize(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if err := e.acquire(conversationID); err != nil {
		return nil, err
	}
	defer e.release(conversationID)

	c, err := e.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if c.Escalation.Escalated {
		return nil, models.ErrConversationEscalated
	}
	if c.Submitted {
		slog.Debug("Engine.Finalize: already submitted, no-op", "conversationID", c.ID)
		return c, nil
	}

	active := c.ActiveStep()
	if active == nil || active.Kind != models.StepSummary {
		return nil, models.ErrConversationIncomplete
	}

	indicator := appendStep(c, models.ConversationStep{Kind: models.StepTypingIndicator})
	recordID, err := e.submitter.SubmitRecord(ctx, c.Template, c.Answers)
	indicator.Complete = true
	if err != nil {
		slog.Error("Engine.Finalize: record submission failed", "conversationID", c.ID, "error", err)
		if saveErr := e.save(c); saveErr != nil {
			return nil, saveErr
		}
		return nil, fmt.Errorf("failed to submit record: %w", err)
	}

	active.Complete = true
	c.Submitted = true
	c.RecordID = recordID
	appendBotMessage(c, "All done! Your record has been submitted.")

	if err := e.save(c); err != nil {
		return nil, err
	}
	slog.Info("Engine.Finalize: record submitted", "conversationID", c.ID, "recordID", recordID)
	return c, nil
}

// AttachVideo uploads a raw media blob through the upload collaborator and
// submits the resulting durable URL as the step's answer.
func (e *Engine) AttachVideo(ctx context.Context, conversationID, stepID, contentType string, data []byte) (*models.Conversation, error) {
	url, err := e.uploader.Upload(ctx, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}
	return e.Submit(ctx, conversationID, stepID, url)
}

// escalate performs the terminal transition: one support case, one escalated
// step, conversation closed to further turns.
func (e *Engine) escalate(ctx context.Context, c *models.Conversation, step *models.ConversationStep, reason string) (*models.Conversation, error) {
	step.Complete = true

	caseID := ""
	if e.cases != nil {
		id, err := e.cases.OpenCase(ctx, c.UserID, c.ID, reason, snapshotJSON(c))
		if err != nil {
			// The terminal transition happens regardless; support can still
			// find the conversation by id.
			slog.Error("Engine.escalate: failed to open support case", "conversationID", c.ID, "error", err)
		} else {
			caseID = id
		}
	}

	c.Escalation.Escalated = true
	c.Escalation.CaseID = caseID
	appendStep(c, models.ConversationStep{
		Kind:     models.StepEscalated,
		Message:  "I'm having trouble helping with this. I've let our support team know — you can also finish up with the manual form.",
		Complete: true,
		Escalated: &models.EscalatedPayload{
			CaseID: caseID,
			Reason: reason,
		},
	})

	if err := e.save(c); err != nil {
		return nil, err
	}
	slog.Warn("Engine.escalate: conversation escalated", "conversationID", c.ID, "caseID", caseID, "reason", reason)
	return c, nil
}

// askNextField advances the cursor: asks the first unsatisfied field in
// template order, or emits the summary step when every field is satisfied.
func (e *Engine) askNextField(c *models.Conversation, tmpl *models.InterviewTemplate) {
	for _, f := range tmpl.Fields {
		if !c.Answers.IsSatisfied(f.Name) {
			e.askField(c, f)
			return
		}
	}

	answers := make(models.AnswerRecord, len(c.Answers))
	for k, v := range c.Answers {
		answers[k] = v
	}
	appendBotMessage(c, "That's everything! Here's what we've got — take a look and submit when you're happy.")
	appendStep(c, models.ConversationStep{
		Kind:    models.StepSummary,
		Summary: &models.SummaryPayload{Answers: answers},
	})
	slog.Info("Engine.askNextField: all fields satisfied, summary emitted", "conversationID", c.ID)
}

// askField emits the bot-message + awaiting pair for one field.
func (e *Engine) askField(c *models.Conversation, f models.FieldSpec) {
	appendBotMessage(c, f.Prompt)
	appendStep(c, models.ConversationStep{
		Kind:  stepKindForField(f.Kind),
		Field: f.Name,
	})
}

func (e *Engine) save(c *models.Conversation) error {
	c.UpdatedAt = time.Now()
	if err := e.store.SaveConversation(*c); err != nil {
		return fmt.Errorf("failed to persist conversation %s: %w", c.ID, err)
	}
	return nil
}

// activeConfirmation returns the incomplete confirmation step for the field.
func activeConfirmation(c *models.Conversation, fieldName string) (*models.ConversationStep, error) {
	active := c.ActiveStep()
	if active == nil || active.Field != fieldName {
		return nil, fmt.Errorf("no pending confirmation for field %s: %w", fieldName, models.ErrStepNotFound)
	}
	if active.Kind != models.StepAwaitingConfirmation && active.Kind != models.StepJobTitleConfirmation {
		return nil, fmt.Errorf("active step for field %s is %s, not a confirmation: %w", fieldName, active.Kind, models.ErrStepNotFound)
	}
	return active, nil
}

// appendStep appends one step with a fresh id and returns a pointer into the
// step list valid until the next append.
func appendStep(c *models.Conversation, step models.ConversationStep) *models.ConversationStep {
	step.ID = uuid.NewString()
	step.CreatedAt = time.Now()
	c.Steps = append(c.Steps, step)
	return &c.Steps[len(c.Steps)-1]
}

func appendBotMessage(c *models.Conversation, message string) {
	appendStep(c, models.ConversationStep{
		Kind:     models.StepBotMessage,
		Message:  message,
		Complete: true,
	})
}

func snapshotJSON(c *models.Conversation) string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf(`{"id":%q}`, c.ID)
	}
	return string(b)
}

func asText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
