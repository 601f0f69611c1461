package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/escalation"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/store"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/taxonomy"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/templates"
)

// stubValidator returns a canned verdict, or delegates to fn when set.
type stubValidator struct {
	fn func(field models.FieldSpec, raw any) models.ValidationVerdict
}

func (s *stubValidator) Validate(_ context.Context, field models.FieldSpec, raw any, _ models.AnswerRecord) models.ValidationVerdict {
	if s.fn != nil {
		return s.fn(field, raw)
	}
	return models.ValidationVerdict{Sufficient: true, Sanitized: raw, NaturalSummary: "Noted."}
}

// stubResolver returns a fixed match for every resolution.
type stubResolver struct {
	match *taxonomy.Match
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (*taxonomy.Match, error) {
	return s.match, nil
}

// countingOpener records how many support cases were requested.
type countingOpener struct {
	opened int
}

func (o *countingOpener) OpenCase(_ context.Context, _, _, _, _ string) (string, error) {
	o.opened++
	return "case-1", nil
}

// recordingSubmitter captures the final record hand-off.
type recordingSubmitter struct {
	submitted []models.AnswerRecord
	err       error
}

func (s *recordingSubmitter) SubmitRecord(_ context.Context, _ models.TemplateType, answers models.AnswerRecord) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.submitted = append(s.submitted, answers)
	return "record-1", nil
}

type testRig struct {
	engine    *Engine
	store     *store.InMemoryStore
	validator *stubValidator
	resolver  *stubResolver
	opener    *countingOpener
	submitter *recordingSubmitter
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	reg, err := templates.Load()
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	rig := &testRig{
		store:     store.NewInMemoryStore(),
		validator: &stubValidator{},
		resolver:  &stubResolver{},
		opener:    &countingOpener{},
		submitter: &recordingSubmitter{},
	}
	rig.engine = NewEngine(rig.store, reg, rig.validator, rig.resolver, escalation.NewMonitor(), rig.opener,
		WithSubmitter(rig.submitter))
	return rig
}

func mustStart(t *testing.T, rig *testRig) *models.Conversation {
	t.Helper()
	c, err := rig.engine.Start(context.Background(), "user-1", models.TemplateGigListing)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return c
}

func TestStartEmitsFirstAsk(t *testing.T) {
	rig := newTestRig(t)
	c := mustStart(t, rig)

	if len(c.Steps) < 3 {
		t.Fatalf("expected welcome + prompt + awaiting steps, got %d", len(c.Steps))
	}
	if c.Steps[0].Kind != models.StepBotMessage {
		t.Errorf("first step kind = %s, want bot-message", c.Steps[0].Kind)
	}
	active := c.ActiveStep()
	if active == nil {
		t.Fatal("expected an active step after Start")
	}
	if active.Kind != models.StepAwaitingInput || active.Field != "gigDescription" {
		t.Errorf("active step = %s/%s, want awaiting-input/gigDescription", active.Kind, active.Field)
	}
}

func TestPickerKindsGetPickerSteps(t *testing.T) {
	cases := []struct {
		kind models.FieldKind
		want models.StepKind
	}{
		{models.FieldKindShortText, models.StepAwaitingInput},
		{models.FieldKindLongText, models.StepAwaitingInput},
		{models.FieldKindNumber, models.StepAwaitingInput},
		{models.FieldKindDate, models.StepAwaitingPicker},
		{models.FieldKindGeoLocation, models.StepAwaitingPicker},
		{models.FieldKindAvailability, models.StepAwaitingPicker},
		{models.FieldKindVideo, models.StepAwaitingPicker},
		{models.FieldKindPromoCode, models.StepAwaitingPicker},
	}
	for _, tc := range cases {
		if got := stepKindForField(tc.kind); got != tc.want {
			t.Errorf("stepKindForField(%s) = %s, want %s", tc.kind, got, tc.want)
		}
	}
}

// TestFullConfirmLoop drives the interview end to end: every field submitted
// and confirmed once yields a summary step with exactly one entry per field.
func TestFullConfirmLoop(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	c := mustStart(t, rig)

	for turns := 0; turns < 20; turns++ {
		active := c.ActiveStep()
		if active == nil {
			t.Fatal("no active step mid-interview")
		}
		if active.Kind == models.StepSummary {
			break
		}

		var err error
		switch active.Kind {
		case models.StepAwaitingInput, models.StepAwaitingPicker:
			c, err = rig.engine.Submit(ctx, c.ID, active.ID, "a perfectly reasonable answer")
		case models.StepAwaitingConfirmation:
			c, err = rig.engine.Confirm(ctx, c.ID, active.Field, active.Confirmation.SanitizedValue)
		default:
			t.Fatalf("unexpected active step kind %s", active.Kind)
		}
		if err != nil {
			t.Fatalf("turn failed on %s: %v", active.Field, err)
		}
	}

	summary := c.ActiveStep()
	if summary == nil || summary.Kind != models.StepSummary {
		t.Fatal("interview did not reach the summary step")
	}

	reg, _ := templates.Load()
	tmpl, _ := reg.Get(models.TemplateGigListing)
	if len(summary.Summary.Answers) != len(tmpl.Fields) {
		t.Fatalf("summary has %d answers, want %d", len(summary.Summary.Answers), len(tmpl.Fields))
	}
	for _, f := range tmpl.Fields {
		if !summary.Summary.Answers.IsSatisfied(f.Name) {
			t.Errorf("summary missing answer for %s", f.Name)
		}
	}

	c, err := rig.engine.Finalize(ctx, c.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !c.Submitted || c.RecordID != "record-1" {
		t.Errorf("conversation not submitted: submitted=%v recordID=%q", c.Submitted, c.RecordID)
	}
	if len(rig.submitter.submitted) != 1 {
		t.Errorf("expected exactly 1 record submission, got %d", len(rig.submitter.submitted))
	}
}

func TestSubmitIdempotentOnCompleteStep(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	c := mustStart(t, rig)
	active := c.ActiveStep()

	c, err := rig.engine.Submit(ctx, c.ID, active.ID, "a perfectly reasonable answer")
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	stepsAfterFirst := len(c.Steps)

	c, err = rig.engine.Submit(ctx, c.ID, active.ID, "a perfectly reasonable answer")
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if len(c.Steps) != stepsAfterFirst {
		t.Errorf("second submit appended steps: %d -> %d", stepsAfterFirst, len(c.Steps))
	}
}

func TestSubmitUnknownStep(t *testing.T) {
	rig := newTestRig(t)
	c := mustStart(t, rig)
	if _, err := rig.engine.Submit(context.Background(), c.ID, "nope", "value"); !errors.Is(err, models.ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}
}

func TestInsufficientAnswerSelfLoops(t *testing.T) {
	rig := newTestRig(t)
	rig.validator.fn = func(field models.FieldSpec, raw any) models.ValidationVerdict {
		return models.ValidationVerdict{Sufficient: false, Clarification: "Could you say more?"}
	}
	ctx := context.Background()
	c := mustStart(t, rig)
	first := c.ActiveStep()

	c, err := rig.engine.Submit(ctx, c.ID, first.ID, "a perfectly reasonable answer")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	active := c.ActiveStep()
	if active == nil {
		t.Fatal("expected the field to be re-asked")
	}
	if active.Field != first.Field {
		t.Errorf("re-asked field = %s, want %s (self-loop, not advance)", active.Field, first.Field)
	}
	if active.ID == first.ID {
		t.Error("self-loop must mint a fresh step id")
	}
	if len(c.Answers) != 0 {
		t.Errorf("insufficient answer must not touch the answer record: %+v", c.Answers)
	}
}

func TestReformulateRoundTrip(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	c := mustStart(t, rig)

	c, err := rig.engine.Submit(ctx, c.ID, c.ActiveStep().ID, "a perfectly reasonable answer")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if c.ActiveStep().Kind != models.StepAwaitingConfirmation {
		t.Fatalf("expected confirmation step, got %s", c.ActiveStep().Kind)
	}

	c, err = rig.engine.Reformulate(ctx, c.ID, "gigDescription")
	if err != nil {
		t.Fatalf("Reformulate failed: %v", err)
	}
	active := c.ActiveStep()
	if active == nil || active.Field != "gigDescription" || active.Kind != models.StepAwaitingInput {
		t.Fatalf("expected gigDescription re-asked, got %+v", active)
	}
	if c.Answers.IsSatisfied("gigDescription") {
		t.Error("reformulate must clear any pending value")
	}

	c, err = rig.engine.Submit(ctx, c.ID, active.ID, "an even better description")
	if err != nil {
		t.Fatalf("Submit after reformulate failed: %v", err)
	}
	c, err = rig.engine.Confirm(ctx, c.ID, "gigDescription", "an even better description")
	if err != nil {
		t.Fatalf("Confirm after reformulate failed: %v", err)
	}
	if got := c.Answers["gigDescription"]; got != "an even better description" {
		t.Errorf("answer = %v, want the reformulated value", got)
	}
}

func TestTitleSuggestionStep(t *testing.T) {
	rig := newTestRig(t)
	rig.resolver.match = &taxonomy.Match{Title: "Bartender", Confidence: 95, MatchedTerms: []string{"bartender"}}
	ctx := context.Background()
	c := mustStart(t, rig)

	c, err := rig.engine.Submit(ctx, c.ID, c.ActiveStep().ID, "someone to run the bar at my party")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	active := c.ActiveStep()
	if active == nil || active.Kind != models.StepJobTitleConfirmation {
		t.Fatalf("expected job-title-confirmation step, got %+v", active)
	}
	if active.TitleSuggestion.Title != "Bartender" {
		t.Errorf("suggested title = %q, want Bartender", active.TitleSuggestion.Title)
	}

	c, err = rig.engine.Confirm(ctx, c.ID, "gigDescription", active.TitleSuggestion.Title)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if got := c.Answers["gigDescription"]; got != "Bartender" {
		t.Errorf("answer = %v, want Bartender", got)
	}
}

func TestNoTitleStepBelowConfidence(t *testing.T) {
	rig := newTestRig(t)
	rig.resolver.match = nil
	ctx := context.Background()
	c := mustStart(t, rig)

	c, err := rig.engine.Submit(ctx, c.ID, c.ActiveStep().ID, "someone to help out generally")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := c.ActiveStep().Kind; got != models.StepAwaitingConfirmation {
		t.Errorf("expected generic confirmation without a title match, got %s", got)
	}
}

// TestEscalationOpensExactlyOneCase drives three flagged turns and checks the
// terminal transition happens once, with one support case.
func TestEscalationOpensExactlyOneCase(t *testing.T) {
	rig := newTestRig(t)
	rig.validator.fn = func(field models.FieldSpec, raw any) models.ValidationVerdict {
		return models.ValidationVerdict{Sufficient: false, Clarification: "Could you say more?"}
	}
	ctx := context.Background()
	c := mustStart(t, rig)

	for _, input := range []string{"zzz", "qqq", "xxx"} {
		active := c.ActiveStep()
		if active == nil {
			t.Fatal("no active step before escalation threshold")
		}
		var err error
		c, err = rig.engine.Submit(ctx, c.ID, active.ID, input)
		if err != nil {
			t.Fatalf("Submit(%q) failed: %v", input, err)
		}
	}

	if !c.Escalation.Escalated {
		t.Fatal("three flagged turns must escalate")
	}
	if c.Escalation.UnrelatedCount != escalation.Threshold {
		t.Errorf("unrelatedCount = %d, want %d", c.Escalation.UnrelatedCount, escalation.Threshold)
	}
	if rig.opener.opened != 1 {
		t.Errorf("expected exactly 1 support case, got %d", rig.opener.opened)
	}

	escalated := 0
	for _, s := range c.Steps {
		if s.Kind == models.StepEscalated {
			escalated++
		}
	}
	if escalated != 1 {
		t.Errorf("expected exactly 1 escalated step, got %d", escalated)
	}

	if _, err := rig.engine.Submit(ctx, c.ID, c.Steps[len(c.Steps)-1].ID, "hello"); !errors.Is(err, models.ErrConversationEscalated) {
		t.Errorf("submit after escalation: expected ErrConversationEscalated, got %v", err)
	}
}

func TestOperationInFlightGuard(t *testing.T) {
	rig := newTestRig(t)
	c := mustStart(t, rig)

	if err := rig.engine.acquire(c.ID); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer rig.engine.release(c.ID)

	if _, err := rig.engine.Submit(context.Background(), c.ID, c.ActiveStep().ID, "value"); !errors.Is(err, models.ErrOperationInFlight) {
		t.Errorf("expected ErrOperationInFlight, got %v", err)
	}
}

func TestFinalizeBeforeSummary(t *testing.T) {
	rig := newTestRig(t)
	c := mustStart(t, rig)
	if _, err := rig.engine.Finalize(context.Background(), c.ID); !errors.Is(err, models.ErrConversationIncomplete) {
		t.Errorf("expected ErrConversationIncomplete, got %v", err)
	}
}

func TestResumeAsksFirstUnsatisfiedField(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	partial := models.Conversation{
		ID:       "conv-resume",
		UserID:   "user-1",
		Template: models.TemplateGigListing,
		Answers:  models.AnswerRecord{"gigDescription": "Bartender"},
	}
	if err := rig.store.SaveConversation(partial); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	c, err := rig.engine.Resume(ctx, "conv-resume")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	active := c.ActiveStep()
	if active == nil || active.Field != "additionalInstructions" {
		t.Fatalf("expected resume to ask additionalInstructions, got %+v", active)
	}
}

func TestTypingIndicatorCompletedAfterValidation(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	c := mustStart(t, rig)

	c, err := rig.engine.Submit(ctx, c.ID, c.ActiveStep().ID, "a perfectly reasonable answer")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	for _, s := range c.Steps {
		if s.Kind == models.StepTypingIndicator && !s.Complete {
			t.Errorf("typing indicator %s left incomplete after validation", s.ID)
		}
	}
}

func TestAttachVideoSubmitsDurableURL(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// The worker profile carries the video field.
	c, err := rig.engine.Start(ctx, "user-2", models.TemplateWorkerProfile)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for turns := 0; turns < 20; turns++ {
		active := c.ActiveStep()
		if active == nil {
			t.Fatal("no active step")
		}
		if active.Field == "videoIntro" {
			break
		}
		switch active.Kind {
		case models.StepAwaitingInput, models.StepAwaitingPicker:
			c, err = rig.engine.Submit(ctx, c.ID, active.ID, "a perfectly reasonable answer")
		default:
			c, err = rig.engine.Confirm(ctx, c.ID, active.Field, "a perfectly reasonable answer")
		}
		if err != nil {
			t.Fatalf("turn failed on %s: %v", active.Field, err)
		}
	}

	c, err = rig.engine.AttachVideo(ctx, c.ID, c.ActiveStep().ID, "video/mp4", []byte{0x00})
	if err != nil {
		t.Fatalf("AttachVideo failed: %v", err)
	}
	active := c.ActiveStep()
	if active == nil || active.Kind != models.StepAwaitingConfirmation {
		t.Fatalf("expected confirmation of the uploaded URL, got %+v", active)
	}
	if url, _ := active.Confirmation.SanitizedValue.(string); url == "" {
		t.Error("expected a durable URL as the sanitized value")
	}
}
