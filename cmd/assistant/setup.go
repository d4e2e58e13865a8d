package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"support-assistant/pkg/advisor"
	"support-assistant/pkg/config"
	"support-assistant/pkg/escalation"
	"support-assistant/pkg/generation"
	"support-assistant/pkg/knowledge"
	"support-assistant/pkg/metrics"
	"support-assistant/pkg/orchestrator"
)

// engine is the stateless part of the assistant shared by every command
type engine struct {
	matcher      *knowledge.Matcher
	orchestrator *orchestrator.Orchestrator
	advisor      *advisor.Advisor
}

func loadConfig(envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	cfg := config.Load()

	policy, err := config.LoadPolicyFile(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) (*engine, error) {
	matcher := knowledge.NewMatcher(knowledge.LoadFile(cfg.CorpusPath, logger))

	policyOpts := []escalation.Option{escalation.WithClarificationThreshold(cfg.ClarificationThreshold)}
	advisorOpts := []advisor.Option{
		advisor.WithMaxActions(cfg.MaxActions),
		advisor.WithMaxTokens(cfg.GenerationMaxTokens),
	}
	if p := cfg.Policy; p != nil {
		if len(p.Keywords) > 0 {
			policyOpts = append(policyOpts, escalation.WithKeywords(p.Keywords))
		}
		if len(p.LowConfidencePhrases) > 0 {
			policyOpts = append(policyOpts, escalation.WithLowConfidencePhrases(p.LowConfidencePhrases))
		}
		if len(p.Topics) > 0 {
			advisorOpts = append(advisorOpts, advisor.WithTopicKeywords(p.Topics))
		}
	}

	backend, err := generation.New(ctx, cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to configure generation backend: %w", err)
	}

	orch := orchestrator.New(escalation.NewPolicy(policyOpts...), backend, orchestrator.Settings{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		KnowledgeHits:       cfg.KnowledgeHits,
		MaxTokens:           cfg.GenerationMaxTokens,
	}, logger)

	return &engine{
		matcher:      matcher,
		orchestrator: orch,
		advisor:      advisor.New(backend, logger, m, advisorOpts...),
	}, nil
}
