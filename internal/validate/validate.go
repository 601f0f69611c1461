// Package validate implements the field validator: a single call to the
// content-understanding service wrapped in local pre- and post-processing.
//
// The component's responsibility is entirely in the processing around the
// remote call. Local rules override or repair the remote verdict where local
// knowledge is authoritative (wage floors, coordinate objects, parseable
// times), and any remote failure degrades to accept-as-is so the interview
// always progresses.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/genai"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/temporal"
)

// remoteVerdict is the wire shape returned by the content-understanding service.
type remoteVerdict struct {
	IsAppropriate       bool   `json:"isAppropriate"`
	IsOnTopic           bool   `json:"isOnTopic"`
	IsSufficient        bool   `json:"isSufficient"`
	ClarificationPrompt string `json:"clarificationPrompt,omitempty"`
	SanitizedValue      string `json:"sanitizedValue,omitempty"`
	NaturalSummary      string `json:"naturalSummary,omitempty"`
	ExtractedData       string `json:"extractedData,omitempty"`
}

// remoteRequest is the wire shape sent to the content-understanding service.
type remoteRequest struct {
	Field        string            `json:"field"`
	RawValue     string            `json:"rawValue"`
	FieldKind    models.FieldKind  `json:"fieldKind"`
	PriorAnswers map[string]string `json:"priorAnswers"`
}

const validatorSystemPrompt = `You validate one answer in a structured interview that assembles a gig listing or worker profile.
Judge whether the answer is appropriate (no abuse or unsafe content), on topic for the named field, and sufficient to store.
Clean the value into its most useful canonical text form, write a short natural-language sentence restating it, and extract any structured sub-fields you can as a JSON string.
Return JSON: {"isAppropriate": bool, "isOnTopic": bool, "isSufficient": bool, "clarificationPrompt": string, "sanitizedValue": string, "naturalSummary": string, "extractedData": string}.`

// Validator wraps the remote content-understanding call with local rules.
type Validator struct {
	genaiClient genai.ClientInterface
}

// NewValidator creates a field validator backed by the given genai client.
func NewValidator(genaiClient genai.ClientInterface) *Validator {
	return &Validator{genaiClient: genaiClient}
}

// Validate produces a verdict for one raw answer. rawValue may be a string or,
// for geo fields, an already-resolved coordinate object. The returned error is
// always nil for recoverable situations; the degrade-on-failure policy means
// callers can treat the verdict as authoritative.
func (v *Validator) Validate(ctx context.Context, field models.FieldSpec, rawValue any, prior models.AnswerRecord) models.ValidationVerdict {
	// Coordinate objects are unambiguous: pass through without a remote call.
	if field.Kind == models.FieldKindGeoLocation {
		if gp, ok := asGeoPoint(rawValue); ok {
			slog.Debug("validate.Validate: coordinate passthrough", "field", field.Name)
			return models.ValidationVerdict{
				Sufficient:     true,
				Sanitized:      gp,
				NaturalSummary: gp.Formatted,
			}
		}
	}

	// Availability objects from the picker are likewise unambiguous.
	if field.Kind == models.FieldKindAvailability {
		if wa, ok := asAvailability(rawValue); ok {
			slog.Debug("validate.Validate: availability passthrough", "field", field.Name)
			return models.ValidationVerdict{Sufficient: true, Sanitized: wa}
		}
	}

	raw := strings.TrimSpace(asString(rawValue))

	// Promo codes never need the remote: blank is a valid decline, anything
	// else is accepted after case-normalization.
	if field.Kind == models.FieldKindPromoCode {
		return models.ValidationVerdict{Sufficient: true, Sanitized: strings.ToUpper(raw)}
	}

	// Reject empty input locally without a remote call.
	if raw == "" {
		slog.Debug("validate.Validate: empty input short-circuit", "field", field.Name)
		return models.ValidationVerdict{
			Sufficient:    false,
			Clarification: fmt.Sprintf("I didn't catch that. %s", field.Prompt),
		}
	}
	if len(raw) > models.MaxRawValueLength {
		return models.ValidationVerdict{
			Sufficient:    false,
			Clarification: "That answer is a bit too long. Could you shorten it?",
		}
	}

	// Video answers arrive as durable URLs from the upload collaborator;
	// a non-empty URL is accepted as-is.
	if field.Kind == models.FieldKindVideo {
		return models.ValidationVerdict{Sufficient: true, Sanitized: raw}
	}

	verdict, err := v.callRemote(ctx, field, raw, prior)
	if err != nil {
		// Degrade to accept-as-is so the interview never deadlocks on an
		// unreliable external service.
		slog.Warn("validate.Validate: remote call failed, accepting raw value", "field", field.Name, "error", err)
		verdict = models.ValidationVerdict{Sufficient: true, Sanitized: raw}
	}

	return v.postProcess(field, raw, verdict)
}

// callRemote performs the single content-understanding call.
func (v *Validator) callRemote(ctx context.Context, field models.FieldSpec, raw string, prior models.AnswerRecord) (models.ValidationVerdict, error) {
	if v.genaiClient == nil {
		return models.ValidationVerdict{}, fmt.Errorf("genai client not configured")
	}

	req := remoteRequest{
		Field:        field.Name,
		RawValue:     raw,
		FieldKind:    field.Kind,
		PriorAnswers: flattenAnswers(prior),
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return models.ValidationVerdict{}, fmt.Errorf("failed to marshal validation request: %w", err)
	}

	var remote remoteVerdict
	if err := v.genaiClient.GenerateJSON(ctx, validatorSystemPrompt, string(reqJSON), &remote); err != nil {
		return models.ValidationVerdict{}, fmt.Errorf("content validation call failed: %w", err)
	}

	verdict := models.ValidationVerdict{
		Sufficient:     remote.IsAppropriate && remote.IsOnTopic && remote.IsSufficient,
		Clarification:  remote.ClarificationPrompt,
		NaturalSummary: remote.NaturalSummary,
		Extracted:      remote.ExtractedData,
	}
	if remote.SanitizedValue != "" {
		verdict.Sanitized = remote.SanitizedValue
	} else {
		verdict.Sanitized = raw
	}
	if !verdict.Sufficient && verdict.Clarification == "" {
		verdict.Clarification = fmt.Sprintf("Could you tell me a bit more? %s", field.Prompt)
	}
	return verdict, nil
}

// postProcess applies field-kind-specific normalization, overriding or
// repairing the remote verdict where local rules are authoritative.
func (v *Validator) postProcess(field models.FieldSpec, raw string, verdict models.ValidationVerdict) models.ValidationVerdict {
	switch field.Kind {
	case models.FieldKindNumber:
		return postProcessNumber(field, raw, verdict)
	case models.FieldKindDate:
		return postProcessDate(field, raw, verdict)
	case models.FieldKindAvailability:
		return postProcessTimeRange(raw, verdict)
	default:
		return verdict
	}
}

// postProcessNumber enforces the field's authoritative minimum locally. A
// value at or above the floor and at or below the sanity ceiling is accepted
// even against a negative remote verdict; a value below the floor is rejected
// even against a positive one.
func postProcessNumber(field models.FieldSpec, raw string, verdict models.ValidationVerdict) models.ValidationVerdict {
	num, ok := parseNumber(raw)
	if !ok {
		if s, isStr := verdict.Sanitized.(string); isStr {
			num, ok = parseNumber(s)
		}
	}
	if !ok {
		if verdict.Sufficient {
			verdict.Sufficient = false
			verdict.Clarification = fmt.Sprintf("I need a number here. %s", field.Prompt)
		}
		return verdict
	}

	verdict.Sanitized = num

	if field.MinValue != nil {
		ceiling := models.MaximumHourlyRate
		if field.MaxValue != nil {
			ceiling = *field.MaxValue
		}
		switch {
		case num < *field.MinValue:
			verdict.Sufficient = false
			verdict.Clarification = fmt.Sprintf("That's below the minimum of %.2f. %s", *field.MinValue, field.Prompt)
		case num <= ceiling:
			// Safety net against an unreliable remote verdict: the floor
			// check is locally decidable.
			if !verdict.Sufficient {
				slog.Info("validate.postProcessNumber: overriding remote insufficient verdict", "field", field.Name, "value", num)
			}
			verdict.Sufficient = true
			verdict.Clarification = ""
		default:
			verdict.Sufficient = false
			verdict.Clarification = fmt.Sprintf("%.2f looks unusually high. Could you double-check?", num)
		}
	}
	return verdict
}

// postProcessDate coerces ISO-with-time or Date-like input down to a
// date-only canonical string.
func postProcessDate(field models.FieldSpec, raw string, verdict models.ValidationVerdict) models.ValidationVerdict {
	candidates := []string{raw}
	if s, ok := verdict.Sanitized.(string); ok {
		candidates = append([]string{s}, candidates...)
	}
	for _, c := range candidates {
		if d, ok := coerceDate(c); ok {
			verdict.Sanitized = d
			return verdict
		}
	}
	// Malformed dates are never silently repaired.
	if verdict.Sufficient {
		verdict.Sufficient = false
		verdict.Clarification = fmt.Sprintf("I couldn't work out that date. %s", field.Prompt)
	}
	return verdict
}

// postProcessTimeRange prefers the temporal parser's canonical result over
// the remote sanitized value whenever the raw text parses.
func postProcessTimeRange(raw string, verdict models.ValidationVerdict) models.ValidationVerdict {
	if r, ok := temporal.ParseRange(raw); ok {
		verdict.Sufficient = true
		verdict.Sanitized = r
		verdict.Clarification = ""
		return verdict
	}
	if t, ok := temporal.ParseSingle(raw); ok {
		verdict.Sufficient = true
		verdict.Sanitized = t
		verdict.Clarification = ""
	}
	return verdict
}

// coerceDate normalizes date-like strings to "YYYY-MM-DD".
func coerceDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02/01/2006",
		"2 January 2006",
		"January 2, 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// parseNumber extracts a decimal from text, tolerating currency symbols and
// thousands separators.
func parseNumber(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		case r == ',':
			return -1
		default:
			return -1
		}
	}, s)
	if cleaned == "" {
		return 0, false
	}
	// Reject text that was mostly words ("twelve pounds fifty").
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}
	num, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return num, true
}

// asGeoPoint recognizes coordinate objects submitted from a map picker.
func asGeoPoint(v any) (models.GeoPoint, bool) {
	switch val := v.(type) {
	case models.GeoPoint:
		return val, true
	case *models.GeoPoint:
		if val != nil {
			return *val, true
		}
	case map[string]any:
		lat, latOK := asFloat(val["lat"])
		lng, lngOK := asFloat(val["lng"])
		if latOK && lngOK {
			formatted, _ := val["formatted"].(string)
			return models.GeoPoint{Lat: lat, Lng: lng, Formatted: formatted}, true
		}
	}
	return models.GeoPoint{}, false
}

// asAvailability recognizes structured weekly-availability objects submitted
// from the availability picker.
func asAvailability(v any) (models.WeeklyAvailability, bool) {
	switch val := v.(type) {
	case models.WeeklyAvailability:
		return val, true
	case *models.WeeklyAvailability:
		if val != nil {
			return *val, true
		}
	case map[string]any:
		if _, hasDays := val["days"]; !hasDays {
			return models.WeeklyAvailability{}, false
		}
		b, err := json.Marshal(val)
		if err != nil {
			return models.WeeklyAvailability{}, false
		}
		var wa models.WeeklyAvailability
		if err := json.Unmarshal(b, &wa); err != nil {
			return models.WeeklyAvailability{}, false
		}
		return wa, true
	}
	return models.WeeklyAvailability{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// asString renders a raw value as text for the remote call.
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// flattenAnswers renders prior answers as strings for the remote request,
// which tolerates partially-filled context.
func flattenAnswers(prior models.AnswerRecord) map[string]string {
	out := make(map[string]string, len(prior))
	for name, value := range prior {
		out[name] = asString(value)
	}
	return out
}
