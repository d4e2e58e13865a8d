package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"support-assistant/pkg/config"
	"support-assistant/pkg/constants"
	"support-assistant/pkg/conversation"
	"support-assistant/pkg/handlers"
	"support-assistant/pkg/handoff"
	"support-assistant/pkg/leader"
	"support-assistant/pkg/metrics"
	redisClient "support-assistant/pkg/redis"
	"support-assistant/pkg/server"
	"support-assistant/pkg/service"
	"support-assistant/pkg/store"
)

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			return serve(cfg, newLogger(cfg.LogLevel))
		},
	}
}

func serve(cfg *config.Config, logger *logrus.Logger) error {
	logger.WithField("pod_id", cfg.PodID).Info("Starting support assistant")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics()

	eng, err := buildEngine(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath, m)
	if err != nil {
		return err
	}
	defer st.Close()

	var (
		cache    conversation.Cache
		sink     handoff.Sink   = handoff.Noop{}
		elector  leader.Elector = leader.Static{}
		election *leader.Election
		consumer *handoff.Consumer
		rc       *redisClient.Client
	)

	if cfg.RedisURL != "" {
		rc, err = redisClient.NewClient(ctx, redisClient.DefaultConnectionConfig(cfg.RedisURL), logger)
		if err != nil {
			return err
		}
		defer rc.Close()

		rdb := rc.Redis()
		cache = conversation.NewRedisCache(rdb, cfg.ContextWindow, cfg.ContextCacheTTL(), logger, m)
		sink = handoff.NewPublisher(rdb, cfg.HandoffStream, logger, m)
		election = leader.NewElection(rdb, cfg.PodID, cfg.LeaderElectionTTLDuration(), logger, m)
		consumer = handoff.NewConsumer(rdb, cfg.HandoffStream, cfg.HandoffGroup, cfg.PodID, handoff.LogNotifier{Logger: logger}, logger, m)
		elector = election
	} else {
		logger.Info("REDIS_URL not set, using the in-process context cache and running as the only leader")
		cache = conversation.NewLRUCache(cfg.ContextCacheSize, cfg.ContextCacheTTL(), cfg.ContextWindow, m)
	}

	assistant := service.NewAssistant(st, cache, eng.matcher, eng.orchestrator, eng.advisor, sink, service.Settings{
		ContextWindow:  cfg.ContextWindow,
		KnowledgeHits:  cfg.KnowledgeHits,
		LogRetention:   cfg.LogRetention(),
		HistoryLimit:   constants.DefaultHistoryLimit,
		ListLimit:      constants.DefaultListLimit,
		SummaryHistory: constants.DefaultSummaryHistoryLimit,
	}, logger, m)

	healthCheck := func(ctx context.Context) error {
		if err := st.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if rc != nil {
			if err := rc.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	handler := handlers.NewHandler(assistant, logger, elector.IsLeader, healthCheck)
	svc := service.NewService(cfg, assistant, server.NewHTTPServer(cfg, handler, logger), election, consumer, logger, m)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer shutdownCancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during service shutdown")
	}

	logger.Info("Support assistant shutdown complete")
	return nil
}
