// Package api provides HTTP response utilities.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
)

// Pre-marshaled fallback response to avoid runtime JSON encoding failures.
var fallbackErrorResponse []byte

// init validates that the fallback response can be marshaled.
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response with the given status code.
// The payload is marshaled before any headers are written so encoding errors
// can fall back to the pre-marshaled envelope.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeEngineError maps engine sentinel errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrConversationNotFound),
		errors.Is(err, models.ErrStepNotFound),
		errors.Is(err, models.ErrFieldNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
	case errors.Is(err, models.ErrOperationInFlight):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, models.ErrConversationEscalated):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, models.ErrConversationIncomplete):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	default:
		slog.Error("Server.writeEngineError: unexpected engine error", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}

// writeConversation wraps a conversation in the success envelope, switching to
// the escalated status when the terminal branch was taken.
func writeConversation(w http.ResponseWriter, statusCode int, c *models.Conversation) {
	if c.Escalation.Escalated {
		writeJSONResponse(w, statusCode, models.EscalatedResponse(c))
		return
	}
	writeJSONResponse(w, statusCode, models.Success(c))
}
