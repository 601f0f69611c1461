package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/temporal"
)

// stubGenAI returns a canned remote verdict, or fails.
type stubGenAI struct {
	payload string
	err     error
	calls   int
}

func (s *stubGenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.payload, s.err
}

func (s *stubGenAI) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.payload), out)
}

func sufficientPayload(sanitized string) string {
	return fmt.Sprintf(`{"isAppropriate": true, "isOnTopic": true, "isSufficient": true, "sanitizedValue": %q, "naturalSummary": "Got it."}`, sanitized)
}

const insufficientPayload = `{"isAppropriate": true, "isOnTopic": true, "isSufficient": false, "clarificationPrompt": "Tell me more."}`

func floatPtr(f float64) *float64 { return &f }

func TestEmptyInputShortCircuits(t *testing.T) {
	stub := &stubGenAI{payload: sufficientPayload("x")}
	v := NewValidator(stub)

	field := models.FieldSpec{Name: "about", Kind: models.FieldKindLongText, Prompt: "Tell me about yourself."}
	verdict := v.Validate(context.Background(), field, "   ", nil)
	if verdict.Sufficient {
		t.Error("empty input must be insufficient")
	}
	if verdict.Clarification == "" {
		t.Error("empty input must carry a clarification prompt")
	}
	if stub.calls != 0 {
		t.Errorf("empty input must not reach the remote, got %d calls", stub.calls)
	}
}

func TestPromoCodeRules(t *testing.T) {
	stub := &stubGenAI{payload: insufficientPayload}
	v := NewValidator(stub)
	field := models.FieldSpec{Name: "promoCode", Kind: models.FieldKindPromoCode, Prompt: "Got a promo code?"}

	verdict := v.Validate(context.Background(), field, "  able50 ", nil)
	if !verdict.Sufficient || verdict.Sanitized != "ABLE50" {
		t.Errorf("promo code verdict = %+v, want sufficient ABLE50", verdict)
	}

	// Blank input is a valid decline.
	verdict = v.Validate(context.Background(), field, "", nil)
	if !verdict.Sufficient || verdict.Sanitized != "" {
		t.Errorf("blank promo verdict = %+v, want sufficient empty", verdict)
	}
	if stub.calls != 0 {
		t.Errorf("promo codes must not reach the remote, got %d calls", stub.calls)
	}
}

func TestGeoCoordinatePassthrough(t *testing.T) {
	stub := &stubGenAI{payload: insufficientPayload}
	v := NewValidator(stub)
	field := models.FieldSpec{Name: "location", Kind: models.FieldKindGeoLocation, Prompt: "Where?"}

	raw := map[string]any{"lat": 51.5074, "lng": -0.1278, "formatted": "London, UK"}
	verdict := v.Validate(context.Background(), field, raw, nil)
	if !verdict.Sufficient {
		t.Fatal("coordinate object must always be sufficient")
	}
	gp, ok := verdict.Sanitized.(models.GeoPoint)
	if !ok || gp.Lat != 51.5074 || gp.Formatted != "London, UK" {
		t.Errorf("sanitized = %#v, want GeoPoint passthrough", verdict.Sanitized)
	}
	if stub.calls != 0 {
		t.Errorf("coordinates must bypass the remote, got %d calls", stub.calls)
	}
}

func TestRateFloorOverridesRemoteInsufficient(t *testing.T) {
	stub := &stubGenAI{payload: insufficientPayload}
	v := NewValidator(stub)
	field := models.FieldSpec{
		Name:     "hourlyRate",
		Kind:     models.FieldKindNumber,
		Prompt:   "What hourly rate?",
		MinValue: floatPtr(models.MinimumHourlyRate),
	}

	verdict := v.Validate(context.Background(), field, "12.21", nil)
	if !verdict.Sufficient {
		t.Fatalf("12.21 meets the floor and must be accepted, got %+v", verdict)
	}
	if verdict.Sanitized != 12.21 {
		t.Errorf("sanitized = %v, want 12.21", verdict.Sanitized)
	}
}

func TestRateBelowFloorRejectedDespiteRemoteApproval(t *testing.T) {
	stub := &stubGenAI{payload: sufficientPayload("9.00")}
	v := NewValidator(stub)
	field := models.FieldSpec{
		Name:     "hourlyRate",
		Kind:     models.FieldKindNumber,
		Prompt:   "What hourly rate?",
		MinValue: floatPtr(models.MinimumHourlyRate),
	}

	verdict := v.Validate(context.Background(), field, "9.00", nil)
	if verdict.Sufficient {
		t.Error("9.00 is below the floor and must be rejected")
	}
	if verdict.Clarification == "" {
		t.Error("floor rejection must carry a clarification")
	}
}

func TestRateAboveCeilingNotAutoAccepted(t *testing.T) {
	stub := &stubGenAI{payload: insufficientPayload}
	v := NewValidator(stub)
	field := models.FieldSpec{
		Name:     "hourlyRate",
		Kind:     models.FieldKindNumber,
		Prompt:   "What hourly rate?",
		MinValue: floatPtr(models.MinimumHourlyRate),
	}

	verdict := v.Validate(context.Background(), field, "9000", nil)
	if verdict.Sufficient {
		t.Error("a rate above the sanity ceiling must not override the remote verdict")
	}
}

func TestDateCoercion(t *testing.T) {
	stub := &stubGenAI{payload: sufficientPayload("2026-09-15T10:00:00Z")}
	v := NewValidator(stub)
	field := models.FieldSpec{Name: "gigDate", Kind: models.FieldKindDate, Prompt: "What date?"}

	verdict := v.Validate(context.Background(), field, "2026-09-15T10:00:00Z", nil)
	if !verdict.Sufficient {
		t.Fatalf("unexpected insufficient verdict: %+v", verdict)
	}
	if verdict.Sanitized != "2026-09-15" {
		t.Errorf("sanitized = %v, want date-only 2026-09-15", verdict.Sanitized)
	}
}

func TestMalformedDateNeverRepaired(t *testing.T) {
	stub := &stubGenAI{payload: sufficientPayload("whenever works")}
	v := NewValidator(stub)
	field := models.FieldSpec{Name: "gigDate", Kind: models.FieldKindDate, Prompt: "What date?"}

	verdict := v.Validate(context.Background(), field, "whenever works", nil)
	if verdict.Sufficient {
		t.Error("unparseable date must surface as insufficient, not be guessed")
	}
}

func TestTimeRangePrefersTemporalParser(t *testing.T) {
	stub := &stubGenAI{payload: sufficientPayload("noon until mid-afternoon")}
	v := NewValidator(stub)
	field := models.FieldSpec{Name: "hours", Kind: models.FieldKindAvailability, Prompt: "What hours?"}

	verdict := v.Validate(context.Background(), field, "12:00 PM - 2:30 PM", nil)
	if !verdict.Sufficient {
		t.Fatalf("unexpected insufficient verdict: %+v", verdict)
	}
	tr, ok := verdict.Sanitized.(temporal.TimeRange)
	if !ok {
		t.Fatalf("sanitized = %#v, want parsed time range", verdict.Sanitized)
	}
	if tr.Start != "12:00" || tr.End != "14:30" || tr.DurationHours != 2.5 {
		t.Errorf("parsed range = %+v", tr)
	}
}

func TestRemoteFailureDegradesToAcceptAsIs(t *testing.T) {
	stub := &stubGenAI{err: fmt.Errorf("network down")}
	v := NewValidator(stub)
	field := models.FieldSpec{Name: "about", Kind: models.FieldKindLongText, Prompt: "Tell me about yourself."}

	verdict := v.Validate(context.Background(), field, "  I have five years of bar experience.  ", nil)
	if !verdict.Sufficient {
		t.Fatal("remote failure must degrade to accept-as-is")
	}
	if verdict.Sanitized != "I have five years of bar experience." {
		t.Errorf("sanitized = %v, want trimmed raw value", verdict.Sanitized)
	}
}

func TestAvailabilityObjectPassthrough(t *testing.T) {
	stub := &stubGenAI{payload: insufficientPayload}
	v := NewValidator(stub)
	field := models.FieldSpec{Name: "availability", Kind: models.FieldKindAvailability, Prompt: "When are you available?"}

	raw := map[string]any{
		"days":      []any{"monday", "wednesday"},
		"startTime": "09:00",
		"endTime":   "17:00",
		"frequency": "weekly",
		"ends":      "never",
	}
	verdict := v.Validate(context.Background(), field, raw, nil)
	if !verdict.Sufficient {
		t.Fatal("structured availability must be sufficient")
	}
	wa, ok := verdict.Sanitized.(models.WeeklyAvailability)
	if !ok || len(wa.Days) != 2 || wa.StartTime != "09:00" {
		t.Errorf("sanitized = %#v, want WeeklyAvailability passthrough", verdict.Sanitized)
	}
	if stub.calls != 0 {
		t.Errorf("structured availability must bypass the remote, got %d calls", stub.calls)
	}
}
