package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"support-assistant/pkg/config"
	"support-assistant/pkg/constants"
	"support-assistant/pkg/handoff"
	"support-assistant/pkg/leader"
	"support-assistant/pkg/metrics"
)

// Service owns the long-running parts of a pod: the HTTP server, the leader
// lease, the hand-off consumer and the retention sweep.
type Service struct {
	config    *config.Config
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	assistant *Assistant
	server    *http.Server
	elector   leader.Elector
	election  *leader.Election
	consumer  *handoff.Consumer

	cleanupInterval time.Duration
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

// NewService wires the pod. election and consumer are nil when Redis is not
// configured; the pod then considers itself the only leader.
func NewService(
	cfg *config.Config,
	assistant *Assistant,
	server *http.Server,
	election *leader.Election,
	consumer *handoff.Consumer,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *Service {
	var elector leader.Elector = leader.Static{}
	if election != nil {
		elector = election
	}

	return &Service{
		config:          cfg,
		logger:          logger,
		metrics:         m,
		assistant:       assistant,
		server:          server,
		elector:         elector,
		election:        election,
		consumer:        consumer,
		cleanupInterval: constants.CleanupInterval,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting support assistant service")

	ctx, s.cancel = context.WithCancel(ctx)

	if s.election != nil {
		s.election.Start(ctx)
	}

	if s.consumer != nil {
		if err := s.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start hand-off consumer: %w", err)
		}
	}

	if s.server != nil {
		s.startHTTPServer()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.cleanupRoutine(ctx)
	}()

	s.logger.WithField("pod_id", s.config.PodID).Info("Support assistant service started successfully")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping support assistant service")

	var shutdownErr error
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, constants.ServerShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
			shutdownErr = err
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.consumer != nil {
		s.consumer.Stop()
	}
	if s.election != nil {
		s.election.Stop()
	}

	s.logger.Info("Support assistant service stopped")
	return shutdownErr
}

func (s *Service) IsLeader() bool {
	return s.elector.IsLeader()
}

func (s *Service) startHTTPServer() {
	go func() {
		s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()
}

func (s *Service) cleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep purges expired log entries; only the leader does it
func (s *Service) sweep(ctx context.Context) {
	if !s.elector.IsLeader() {
		return
	}
	if _, err := s.assistant.PurgeLogs(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to purge expired log entries")
	}
}
