package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"support-assistant/pkg/config"
	"support-assistant/pkg/handlers"
)

func NewHTTPServer(config *config.Config, handler *handlers.Handler, logger *logrus.Logger) *http.Server {
	return &http.Server{
		Addr:         ":" + config.Port,
		Handler:      NewRouter(handler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter mounts the API routes and the metrics endpoint
func NewRouter(handler *handlers.Handler, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()

	handler.Register(router)

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.Use(loggingMiddleware(logger))

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("HTTP request processed")
		})
	}
}
