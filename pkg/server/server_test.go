package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-assistant/pkg/config"
	"support-assistant/pkg/handlers"
)

func TestNewHTTPServer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handler := handlers.NewHandler(nil, logger, func() bool { return false }, nil)

	srv := NewHTTPServer(&config.Config{Port: "9090"}, handler, logger)
	assert.Equal(t, ":9090", srv.Addr)
	require.NotNil(t, srv.Handler)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_leader":false`)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	loggingMiddleware(logger)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/conversations", bytes.NewBufferString("{}")))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "HTTP request processed", entry.Message)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/api/conversations", entry.Data["path"])
}
