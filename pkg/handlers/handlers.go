package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"support-assistant/pkg/models"
	"support-assistant/pkg/service"
)

type Handler struct {
	assistant    *service.Assistant
	logger       *logrus.Logger
	isLeaderFunc func() bool
	healthCheck  func(ctx context.Context) error
}

// NewHandler builds the API handlers. healthCheck may be nil.
func NewHandler(assistant *service.Assistant, logger *logrus.Logger, isLeaderFunc func() bool, healthCheck func(ctx context.Context) error) *Handler {
	return &Handler{
		assistant:    assistant,
		logger:       logger,
		isLeaderFunc: isLeaderFunc,
		healthCheck:  healthCheck,
	}
}

// Register adds the API routes to router
func (h *Handler) Register(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/conversations", h.CreateConversation).Methods("POST")
	api.HandleFunc("/conversations/{id}/messages", h.SubmitMessage).Methods("POST")
	api.HandleFunc("/conversations/{id}/history", h.History).Methods("GET")
	api.HandleFunc("/conversations/{id}/escalate", h.Escalate).Methods("POST")
	api.HandleFunc("/conversations/{id}/logs", h.Logs).Methods("GET")
	api.HandleFunc("/conversations/{id}/summary", h.Summary).Methods("POST")
	api.HandleFunc("/conversations/{id}/next-actions", h.NextActions).Methods("POST")
	api.HandleFunc("/escalations", h.Escalations).Methods("GET")
	api.HandleFunc("/admin/conversations", h.AdminConversations).Methods("GET")
	api.HandleFunc("/admin/conversations/{id}", h.AdminConversation).Methods("GET")

	router.HandleFunc("/health", h.Health).Methods("GET")
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID string `json:"user_id"`
	}
	if !h.decode(w, r, &request) {
		return
	}

	conv, err := h.assistant.CreateConversation(r.Context(), request.UserID)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"conversation_id": conv.ID,
		"created_at":      conv.CreatedAt,
	})
}

func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var request struct {
		Text string `json:"text"`
	}
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.assistant.SubmitMessage(r.Context(), conversationID, request.Text)
	if err != nil {
		h.fail(w, r, conversationID, err)
		return
	}

	faqs := make([]map[string]interface{}, 0, len(result.Hits))
	for _, hit := range result.Hits {
		faqs = append(faqs, map[string]interface{}{"id": hit.Record.ID, "score": hit.Score})
	}

	response := map[string]interface{}{
		"role":            models.RoleAssistant,
		"text":            result.Reply.Text,
		"should_escalate": result.Reply.ShouldEscalate,
		"trigger_reason":  result.Reply.Reason,
		"source":          result.Reply.Source,
		"faqs":            faqs,
	}
	if result.Escalation != nil {
		response["escalation"] = map[string]interface{}{
			"id":     result.Escalation.ID,
			"status": result.Escalation.Status,
		}
	}

	h.respond(w, http.StatusOK, response)

	h.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"source":          result.Reply.Source,
		"escalate":        result.Reply.ShouldEscalate,
	}).Debug("Answered message")
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	turns, err := h.assistant.History(r.Context(), conversationID)
	if err != nil {
		h.fail(w, r, conversationID, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"messages": turns})
}

func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var request struct {
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
	}
	if !h.decode(w, r, &request) {
		return
	}

	escalation, err := h.assistant.Escalate(r.Context(), conversationID, request.Reason, request.Notes)
	if err != nil {
		h.fail(w, r, conversationID, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"escalation_id": escalation.ID,
		"status":        escalation.Status,
	})
}

func (h *Handler) Escalations(w http.ResponseWriter, r *http.Request) {
	escalations, err := h.assistant.Escalations(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	h.respond(w, http.StatusOK, escalations)
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	logs, err := h.assistant.Logs(r.Context(), conversationID)
	if err != nil {
		h.fail(w, r, conversationID, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	summary, err := h.assistant.Summarize(r.Context(), conversationID)
	if err != nil {
		h.fail(w, r, conversationID, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

func (h *Handler) NextActions(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	suggestion, err := h.assistant.NextActions(r.Context(), conversationID)
	if err != nil {
		h.fail(w, r, conversationID, err)
		return
	}

	h.respond(w, http.StatusOK, suggestion)
}

func (h *Handler) AdminConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.assistant.ListConversations(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (h *Handler) AdminConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	detail, err := h.assistant.ConversationDetail(r.Context(), conversationID)
	if err != nil {
		h.fail(w, r, conversationID, err)
		return
	}

	h.respond(w, http.StatusOK, detail)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		if err := h.healthCheck(r.Context()); err != nil {
			h.logger.WithError(err).Warn("Health check failed")
			h.writeError(w, http.StatusServiceUnavailable, "health check failed")
			return
		}
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"is_leader": h.isLeaderFunc(),
		"timestamp": time.Now(),
	})
}

// decode reads an optional JSON body; an empty body leaves v untouched
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, conversationID string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"method":          r.Method,
			"path":            r.URL.Path,
		}).Error("Unhandled request error")
		if conversationID != "" {
			h.assistant.RecordError(r.Context(), conversationID, err)
		}
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.respond(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"status":  status,
		},
	})
}

func (h *Handler) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Warn("Failed to encode response")
	}
}

func queryInt(r *http.Request, key string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return value
}
