package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"support-assistant/pkg/config"
	"support-assistant/pkg/metrics"
)

// Provider names accepted in GENERATION_PROVIDER
const (
	ProviderNone      = "none"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderVertex    = "vertex"
)

// New selects the backend named by the configuration once at startup and
// wraps it with the timeout guard. Missing credentials select the disabled
// backend; only a provider that is configured but cannot be built is an error.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) (*Guarded, error) {
	backend, err := build(ctx, cfg)
	if errors.Is(err, ErrNotConfigured) {
		logger.WithField("provider", cfg.GenerationProvider).Info("Generation backend not configured, using deterministic replies only")
		return NewGuarded(Disabled{}, cfg.GenerationTimeout(), logger, m), nil
	}
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"provider": backend.Name(),
		"model":    cfg.GenerationModel,
		"timeout":  cfg.GenerationTimeout(),
	}).Info("Generation backend configured")

	return NewGuarded(backend, cfg.GenerationTimeout(), logger, m), nil
}

func build(ctx context.Context, cfg *config.Config) (Backend, error) {
	settings := ProviderSettings{
		Model:   cfg.GenerationModel,
		APIKey:  cfg.GenerationAPIKey,
		BaseURL: cfg.GenerationBaseURL,
	}

	var (
		model llms.Model
		err   error
	)

	switch provider := strings.ToLower(strings.TrimSpace(cfg.GenerationProvider)); provider {
	case "", ProviderNone:
		return nil, ErrNotConfigured
	case ProviderGemini:
		backend, err := NewGenAI(ctx, cfg.GenerationAPIKey, cfg.GenerationModel)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case ProviderVertex:
		backend, err := NewVertexGollem(ctx, cfg.VertexProject, cfg.VertexLocation)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case ProviderOpenAI:
		model, err = newOpenAI(settings)
	case ProviderAnthropic:
		model, err = newAnthropic(settings)
	case ProviderOllama:
		model, err = newOllama(settings)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", provider)
	}

	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.GenerationProvider, err)
	}
	return NewLangChain(strings.ToLower(cfg.GenerationProvider), model), nil
}
