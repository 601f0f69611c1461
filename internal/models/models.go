// Package models defines the core data structures for the conversational
// record intake engine.
//
// It includes field specifications, interview templates, conversation steps,
// validation verdicts, and escalation state, which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// FieldKind defines how a field is asked and validated.
type FieldKind string

const (
	// FieldKindShortText collects a short free-text answer.
	FieldKindShortText FieldKind = "short-text"
	// FieldKindLongText collects a multi-sentence free-text answer.
	FieldKindLongText FieldKind = "long-text"
	// FieldKindNumber collects a numeric answer (e.g. an hourly rate).
	FieldKindNumber FieldKind = "number"
	// FieldKindDate collects a calendar date.
	FieldKindDate FieldKind = "date"
	// FieldKindGeoLocation collects a location via free text or map pick.
	FieldKindGeoLocation FieldKind = "geo-location"
	// FieldKindAvailability collects a recurring weekly availability window.
	FieldKindAvailability FieldKind = "weekly-availability"
	// FieldKindVideo collects a short video capture via the upload collaborator.
	FieldKindVideo FieldKind = "video"
	// FieldKindPromoCode collects an optional promotional code.
	FieldKindPromoCode FieldKind = "promo-code"
)

// IsValidFieldKind checks if the given field kind is supported.
func IsValidFieldKind(k FieldKind) bool {
	switch k {
	case FieldKindShortText, FieldKindLongText, FieldKindNumber, FieldKindDate,
		FieldKindGeoLocation, FieldKindAvailability, FieldKindVideo, FieldKindPromoCode:
		return true
	default:
		return false
	}
}

// Validation constants for input handling.
const (
	// MaxRawValueLength defines the maximum accepted length for a raw answer.
	MaxRawValueLength = 4096
	// MinimumHourlyRate is the legal wage floor enforced locally for rate fields.
	MinimumHourlyRate = 12.21
	// MaximumHourlyRate is the sanity ceiling above which a rate is never
	// auto-accepted against a negative remote verdict.
	MaximumHourlyRate = 500.0
)

// Error variables for better error handling and testability.
var (
	ErrEmptyFieldName         = errors.New("field name cannot be empty")
	ErrInvalidFieldKind       = errors.New("invalid field kind")
	ErrDuplicateFieldName     = errors.New("duplicate field name in template")
	ErrEmptyPrompt            = errors.New("field prompt cannot be empty")
	ErrRawValueTooLong        = errors.New("raw value exceeds maximum length")
	ErrStepNotFound           = errors.New("step not found")
	ErrStepAlreadyComplete    = errors.New("step already complete")
	ErrFieldNotFound          = errors.New("field not found in template")
	ErrOperationInFlight      = errors.New("another operation is in flight for this conversation")
	ErrConversationEscalated  = errors.New("conversation has been escalated")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrConversationIncomplete = errors.New("conversation has unsatisfied fields")
)

// FieldSpec is the static descriptor of one required field. FieldSpecs form an
// ordered list; order defines the default interview sequence. The list is
// immutable for the lifetime of one conversation.
type FieldSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Kind        FieldKind `json:"kind" yaml:"kind"`
	Prompt      string    `json:"prompt" yaml:"prompt"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`

	// MinValue and MaxValue bound number fields. MinValue is authoritative:
	// a number at or above it (and at or below MaxValue) is accepted locally
	// even when the remote verdict says otherwise.
	MinValue *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`

	// ResolveTitle marks text fields whose answers should be run through the
	// job-title taxonomy before confirmation.
	ResolveTitle bool `json:"resolve_title,omitempty" yaml:"resolve_title,omitempty"`
}

// Validate checks a single FieldSpec for structural validity.
func (f *FieldSpec) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyFieldName
	}
	if !IsValidFieldKind(f.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidFieldKind, f.Kind)
	}
	if strings.TrimSpace(f.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// TemplateType identifies which record type an interview assembles.
type TemplateType string

const (
	// TemplateGigListing interviews a buyer to assemble a gig listing.
	TemplateGigListing TemplateType = "gig-listing"
	// TemplateWorkerProfile interviews a worker to assemble a worker profile.
	TemplateWorkerProfile TemplateType = "worker-profile"
)

// IsValidTemplateType checks if the given template type is supported.
func IsValidTemplateType(t TemplateType) bool {
	switch t {
	case TemplateGigListing, TemplateWorkerProfile:
		return true
	default:
		return false
	}
}

// InterviewTemplate is an ordered, named list of FieldSpecs.
type InterviewTemplate struct {
	Type   TemplateType `json:"type" yaml:"type"`
	Title  string       `json:"title" yaml:"title"`
	Fields []FieldSpec  `json:"fields" yaml:"fields"`
}

// Validate checks the template for unique names and valid field specs.
func (t *InterviewTemplate) Validate() error {
	if !IsValidTemplateType(t.Type) {
		return fmt.Errorf("invalid template type %q", t.Type)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("template %q has no fields", t.Type)
	}
	seen := make(map[string]bool, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		if err := f.Validate(); err != nil {
			return fmt.Errorf("template %q field %d: %w", t.Type, i, err)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateFieldName, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// FieldByName returns the FieldSpec with the given name, or nil.
func (t *InterviewTemplate) FieldByName(name string) *FieldSpec {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// Weekday names accepted in weekly availability objects.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// GeoPoint is the canonical form of a resolved location.
type GeoPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Formatted string  `json:"formatted"`
}

// WeeklyAvailability is the canonical form of a recurring availability answer.
type WeeklyAvailability struct {
	Days        []Weekday `json:"days"`
	StartTime   string    `json:"startTime"` // "HH:MM"
	EndTime     string    `json:"endTime"`   // "HH:MM"
	Frequency   string    `json:"frequency"` // e.g. "weekly", "biweekly"
	Ends        string    `json:"ends"`      // "never", "on_date", "after_occurrences"
	EndDate     string    `json:"endDate,omitempty"`
	Occurrences int       `json:"occurrences,omitempty"`
}

// AnswerRecord maps field names to their currently accepted values. A field is
// satisfied iff it has an entry. Values are JSON-serializable shapes: string,
// float64, GeoPoint, or WeeklyAvailability. Owned exclusively by the
// conversation engine; mutated only at confirmation time.
type AnswerRecord map[string]any

// IsSatisfied reports whether the named field has an accepted entry.
// Promo-code declines are stored as empty strings and still count.
func (a AnswerRecord) IsSatisfied(name string) bool {
	_, ok := a[name]
	return ok
}
