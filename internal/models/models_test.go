package models

import (
	"errors"
	"testing"
)

func validTemplate() InterviewTemplate {
	return InterviewTemplate{
		Type:  TemplateGigListing,
		Title: "Create a gig listing",
		Fields: []FieldSpec{
			{Name: "gigDescription", Kind: FieldKindShortText, Prompt: "What do you need?"},
			{Name: "hourlyRate", Kind: FieldKindNumber, Prompt: "What rate?"},
		},
	}
}

func TestTemplateValidate(t *testing.T) {
	tmpl := validTemplate()
	if err := tmpl.Validate(); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}
}

func TestTemplateValidateDuplicateName(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Fields = append(tmpl.Fields, FieldSpec{Name: "gigDescription", Kind: FieldKindShortText, Prompt: "Again?"})
	if err := tmpl.Validate(); !errors.Is(err, ErrDuplicateFieldName) {
		t.Errorf("expected ErrDuplicateFieldName, got %v", err)
	}
}

func TestTemplateValidateBadField(t *testing.T) {
	cases := []struct {
		name  string
		field FieldSpec
		want  error
	}{
		{"empty name", FieldSpec{Kind: FieldKindShortText, Prompt: "?"}, ErrEmptyFieldName},
		{"bad kind", FieldSpec{Name: "x", Kind: "telepathy", Prompt: "?"}, ErrInvalidFieldKind},
		{"empty prompt", FieldSpec{Name: "x", Kind: FieldKindShortText}, ErrEmptyPrompt},
	}
	for _, tc := range cases {
		tmpl := validTemplate()
		tmpl.Fields = append(tmpl.Fields, tc.field)
		if err := tmpl.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFieldByName(t *testing.T) {
	tmpl := validTemplate()
	if f := tmpl.FieldByName("hourlyRate"); f == nil || f.Kind != FieldKindNumber {
		t.Errorf("FieldByName(hourlyRate) = %+v", f)
	}
	if f := tmpl.FieldByName("nope"); f != nil {
		t.Errorf("FieldByName(nope) = %+v, want nil", f)
	}
}

func TestStepKindAwaitsUser(t *testing.T) {
	awaiting := []StepKind{StepAwaitingInput, StepAwaitingConfirmation, StepAwaitingPicker, StepJobTitleConfirmation, StepSummary}
	for _, k := range awaiting {
		if !k.AwaitsUser() {
			t.Errorf("%s must await user action", k)
		}
	}
	passive := []StepKind{StepBotMessage, StepTypingIndicator, StepEscalated}
	for _, k := range passive {
		if k.AwaitsUser() {
			t.Errorf("%s must not await user action", k)
		}
	}
}

func TestActiveStep(t *testing.T) {
	c := Conversation{
		Steps: []ConversationStep{
			{ID: "a", Kind: StepBotMessage, Complete: true},
			{ID: "b", Kind: StepAwaitingInput, Complete: true},
			{ID: "c", Kind: StepBotMessage, Complete: true},
			{ID: "d", Kind: StepAwaitingConfirmation},
		},
	}
	active := c.ActiveStep()
	if active == nil || active.ID != "d" {
		t.Fatalf("ActiveStep = %+v, want step d", active)
	}

	c.Steps[3].Complete = true
	if got := c.ActiveStep(); got != nil {
		t.Errorf("ActiveStep after completion = %+v, want nil", got)
	}
}

func TestAnswerRecordIsSatisfied(t *testing.T) {
	a := AnswerRecord{"promoCode": ""}
	if !a.IsSatisfied("promoCode") {
		t.Error("an explicit empty decline still satisfies the field")
	}
	if a.IsSatisfied("hourlyRate") {
		t.Error("missing entry must not be satisfied")
	}
}
