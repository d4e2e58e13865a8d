package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-assistant/pkg/advisor"
	"support-assistant/pkg/conversation"
	"support-assistant/pkg/escalation"
	"support-assistant/pkg/handoff"
	"support-assistant/pkg/knowledge"
	"support-assistant/pkg/metrics"
	"support-assistant/pkg/models"
	"support-assistant/pkg/orchestrator"
	"support-assistant/pkg/service"
	"support-assistant/pkg/store"
)

func setupRouter(t *testing.T, healthCheck func(ctx context.Context) error) *mux.Router {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	m := metrics.NewMetricsWithRegisterer(prometheus.NewRegistry())

	st, err := store.Open(filepath.Join(t.TempDir(), "assistant.db"), m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	matcher := knowledge.NewMatcher([]models.KnowledgeRecord{
		{ID: "faq_1", Question: "How do I reset my password", Answer: "Go to Settings > Reset Password"},
		{ID: "faq_2", Question: "Where can I download my invoice", Answer: "Invoices are under Billing > History."},
	})
	orch := orchestrator.New(escalation.NewPolicy(), nil, orchestrator.DefaultSettings(), logger)
	assistant := service.NewAssistant(
		st,
		conversation.NewLRUCache(100, time.Hour, 12, m),
		matcher,
		orch,
		advisor.New(nil, logger, m),
		handoff.Noop{},
		service.DefaultSettings(),
		logger,
		m,
	)

	router := mux.NewRouter()
	NewHandler(assistant, logger, func() bool { return true }, healthCheck).Register(router)
	return router
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func TestCreateConversation(t *testing.T) {
	router := setupRouter(t, nil)

	rec, body := do(t, router, http.MethodPost, "/api/conversations", map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["conversation_id"])
	assert.NotEmpty(t, body["created_at"])

	rec, body = do(t, router, http.MethodPost, "/api/conversations", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "the body is optional")
	assert.NotEmpty(t, body["conversation_id"])
}

func TestSubmitMessage(t *testing.T) {
	router := setupRouter(t, nil)

	rec, body := do(t, router, http.MethodPost, "/api/conversations/conv_1/messages", map[string]string{"text": "How do I reset my password"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "assistant", body["role"])
	assert.Equal(t, "Go to Settings > Reset Password", body["text"])
	assert.Equal(t, false, body["should_escalate"])
	assert.NotContains(t, body, "escalation")

	faqs, ok := body["faqs"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, faqs)
	assert.Equal(t, "faq_1", faqs[0].(map[string]interface{})["id"])

	rec, body = do(t, router, http.MethodGet, "/api/conversations/conv_1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["messages"], 2)
}

func TestSubmitMessage_Escalation(t *testing.T) {
	router := setupRouter(t, nil)

	rec, body := do(t, router, http.MethodPost, "/api/conversations/conv_1/messages", map[string]string{"text": "refund, this is fraud"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["should_escalate"])
	assert.Equal(t, "user_keyword", body["trigger_reason"])

	escalation, ok := body["escalation"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, escalation["id"])
	assert.Equal(t, "queued", escalation["status"])

	req := httptest.NewRequest(http.MethodGet, "/api/escalations?limit=5", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var escalations []models.Escalation
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &escalations))
	require.Len(t, escalations, 1)
	assert.Equal(t, escalation["id"], escalations[0].ID)
}

func TestSubmitMessage_Errors(t *testing.T) {
	router := setupRouter(t, nil)

	rec, body := do(t, router, http.MethodPost, "/api/conversations/conv_1/messages", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, errBody["message"], "missing text field")
	assert.Equal(t, float64(http.StatusBadRequest), errBody["status"])

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv_1/messages", bytes.NewBufferString("{not json"))
	badRec := httptest.NewRecorder()
	router.ServeHTTP(badRec, req)
	assert.Equal(t, http.StatusBadRequest, badRec.Code)
}

func TestEscalate(t *testing.T) {
	router := setupRouter(t, nil)

	rec, body := do(t, router, http.MethodPost, "/api/conversations/conv_1/escalate", map[string]string{"notes": "asked for a callback"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["escalation_id"])
	assert.Equal(t, "queued", body["status"])

	rec, body = do(t, router, http.MethodGet, "/api/conversations/conv_1/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs, ok := body["logs"].([]interface{})
	require.True(t, ok)
	require.Len(t, logs, 1)
	assert.Equal(t, "manual_escalation", logs[0].(map[string]interface{})["message"])
}

func TestSummaryAndNextActions(t *testing.T) {
	router := setupRouter(t, nil)

	rec, body := do(t, router, http.MethodPost, "/api/conversations/conv_1/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"].(map[string]interface{})["message"], "no messages to summarize")

	rec, _ = do(t, router, http.MethodPost, "/api/conversations/conv_1/messages", map[string]string{"text": "Where can I download my invoice"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, router, http.MethodPost, "/api/conversations/conv_1/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["summary"], "Where can I download my invoice")

	rec, body = do(t, router, http.MethodPost, "/api/conversations/conv_1/next-actions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", body["reason"])
	assert.Len(t, body["actions"], 3)

	rec, _ = do(t, router, http.MethodPost, "/api/conversations/missing/next-actions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	router := setupRouter(t, nil)

	rec, _ := do(t, router, http.MethodGet, "/api/admin/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/conversations/conv_1/messages", map[string]string{"text": "How do I reset my password"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, router, http.MethodGet, "/api/admin/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["conversations"], 1)

	rec, body = do(t, router, http.MethodGet, "/api/admin/conversations/conv_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["turns"], 2)
	assert.Len(t, body["logs"], 3)
	assert.Equal(t, "conv_1", body["conversation"].(map[string]interface{})["id"])
}

func TestHealth(t *testing.T) {
	router := setupRouter(t, nil)

	rec, body := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["is_leader"])

	failing := setupRouter(t, func(context.Context) error { return errors.New("database is locked") })
	rec, _ = do(t, failing, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
