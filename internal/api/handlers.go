// Package api provides the conversation endpoint handlers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
)

// createConversationRequest is the body for POST /conversations.
type createConversationRequest struct {
	UserID   string              `json:"user_id"`
	Template models.TemplateType `json:"template"`
}

// submitRequest is the body for POST /conversations/{id}/submit. Value is any
// JSON shape: free text, a coordinate object, or an availability object.
type submitRequest struct {
	StepID string `json:"step_id"`
	Value  any    `json:"value"`
}

// confirmRequest is the body for POST /conversations/{id}/confirm.
type confirmRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// reformulateRequest is the body for POST /conversations/{id}/reformulate.
type reformulateRequest struct {
	Field string `json:"field"`
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// createConversationHandler handles POST /conversations.
func (s *Server) createConversationHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("createConversationHandler invoked", "method", r.Method, "path", r.URL.Path)

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("createConversationHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}
	if !models.IsValidTemplateType(req.Template) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("unknown template type"))
		return
	}

	c, err := s.engine.Start(r.Context(), req.UserID, req.Template)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	slog.Info("createConversationHandler: conversation created", "conversationID", c.ID, "template", req.Template)
	writeConversation(w, http.StatusCreated, c)
}

// getConversationHandler handles GET /conversations/{id}.
func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	c, err := s.engine.Get(r.Context(), conversationID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeConversation(w, http.StatusOK, c)
}

// submitHandler handles POST /conversations/{id}/submit.
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	slog.Debug("submitHandler invoked", "conversationID", conversationID)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("submitHandler invalid JSON", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.StepID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("step_id is required"))
		return
	}

	c, err := s.engine.Submit(r.Context(), conversationID, req.StepID, req.Value)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeConversation(w, http.StatusOK, c)
}

// confirmHandler handles POST /conversations/{id}/confirm.
func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	slog.Debug("confirmHandler invoked", "conversationID", conversationID)

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("confirmHandler invalid JSON", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Field == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("field is required"))
		return
	}

	c, err := s.engine.Confirm(r.Context(), conversationID, req.Field, req.Value)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeConversation(w, http.StatusOK, c)
}

// reformulateHandler handles POST /conversations/{id}/reformulate.
func (s *Server) reformulateHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	slog.Debug("reformulateHandler invoked", "conversationID", conversationID)

	var req reformulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("reformulateHandler invalid JSON", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Field == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("field is required"))
		return
	}

	c, err := s.engine.Reformulate(r.Context(), conversationID, req.Field)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeConversation(w, http.StatusOK, c)
}

// finalizeHandler handles POST /conversations/{id}/finalize.
func (s *Server) finalizeHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	slog.Debug("finalizeHandler invoked", "conversationID", conversationID)

	c, err := s.engine.Finalize(r.Context(), conversationID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	slog.Info("finalizeHandler: record finalized", "conversationID", conversationID, "recordID", c.RecordID)
	writeConversation(w, http.StatusOK, c)
}
