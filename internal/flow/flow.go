// Package flow implements the conversation state machine: the ordered step
// list, the required-fields cursor, and the per-field ask → validate →
// confirm/reformulate → advance protocol.
//
// All mutation routes through Start, Submit, Confirm, Reformulate and
// Finalize. A per-conversation in-flight guard rejects a second mutating
// operation while a suspending call (validation, taxonomy, geocoding,
// submission) is outstanding, so step append order is wall-clock completion
// order.
package flow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
)

// RecordSubmitter hands the finished record to the downstream creation
// service. Rates arrive as decimals, dates as "YYYY-MM-DD", locations as
// GeoPoint or string, availability as the structured weekly object.
type RecordSubmitter interface {
	SubmitRecord(ctx context.Context, template models.TemplateType, answers models.AnswerRecord) (string, error)
}

// Geocoder resolves free-text location input to coordinates. May be absent,
// in which case location text goes to the validator unresolved.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (models.GeoPoint, error)
}

// MediaUploader stores a raw media blob and returns a durable URL used as
// the field's sanitized value.
type MediaUploader interface {
	Upload(ctx context.Context, contentType string, data []byte) (string, error)
}

// LocalRecordSubmitter is the stand-alone default: it mints an id and logs
// instead of calling a downstream service.
type LocalRecordSubmitter struct{}

func (LocalRecordSubmitter) SubmitRecord(_ context.Context, template models.TemplateType, answers models.AnswerRecord) (string, error) {
	id := uuid.NewString()
	slog.Info("LocalRecordSubmitter.SubmitRecord: record accepted locally", "recordID", id, "template", template, "fields", len(answers))
	return id, nil
}

// LocalMediaUploader is the stand-alone default: it mints a placeholder URL
// without persisting the blob.
type LocalMediaUploader struct{}

func (LocalMediaUploader) Upload(_ context.Context, contentType string, data []byte) (string, error) {
	url := "media://" + uuid.NewString()
	slog.Info("LocalMediaUploader.Upload: blob accepted locally", "url", url, "contentType", contentType, "bytes", len(data))
	return url, nil
}

// stepKindForField maps a field kind to the awaiting step kind that collects
// it. Picker kinds get a structured input surface; plain text and numbers a
// free-text one.
func stepKindForField(kind models.FieldKind) models.StepKind {
	switch kind {
	case models.FieldKindGeoLocation, models.FieldKindDate, models.FieldKindAvailability,
		models.FieldKindVideo, models.FieldKindPromoCode:
		return models.StepAwaitingPicker
	default:
		return models.StepAwaitingInput
	}
}
