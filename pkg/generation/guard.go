package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"support-assistant/pkg/constants"
	"support-assistant/pkg/metrics"
)

// Guarded wraps a Backend with a hard deadline, error classification and
// instrumentation. A call that overruns the deadline is abandoned: the caller
// returns immediately and the late result is discarded. A non-positive
// timeout falls back to the default, so every call is bounded.
type Guarded struct {
	backend Backend
	timeout time.Duration
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewGuarded(backend Backend, timeout time.Duration, logger *logrus.Logger, metrics *metrics.Metrics) *Guarded {
	if backend == nil {
		backend = Disabled{}
	}
	if timeout <= 0 {
		timeout = constants.MillisecondsToDuration(constants.DefaultGenerationTimeoutMS)
	}
	return &Guarded{
		backend: backend,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

func (g *Guarded) Name() string {
	return g.backend.Name()
}

func (g *Guarded) Available() bool {
	return g.backend.Available()
}

type generateResult struct {
	text string
	err  error
}

func (g *Guarded) Generate(ctx context.Context, req Request) (string, error) {
	if !g.backend.Available() {
		return "", ErrNotConfigured
	}

	start := time.Now()
	status := "success"
	defer func() {
		if g.metrics != nil {
			g.metrics.GenerationDuration.WithLabelValues(g.backend.Name()).Observe(time.Since(start).Seconds())
			g.metrics.GenerationRequests.WithLabelValues(g.backend.Name(), status).Inc()
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resultCh := make(chan generateResult, 1)
	go func() {
		text, err := g.backend.Generate(callCtx, req)
		resultCh <- generateResult{text: text, err: err}
	}()

	var res generateResult
	select {
	case res = <-resultCh:
	case <-callCtx.Done():
		res = generateResult{err: callCtx.Err()}
	}

	text, err := classify(callCtx, res)
	if err != nil {
		status = statusLabel(err)
		g.logger.WithError(err).WithFields(logrus.Fields{
			"backend":  g.backend.Name(),
			"duration": time.Since(start),
		}).Warn("Generation call failed")
		return "", err
	}

	return text, nil
}

func classify(ctx context.Context, res generateResult) (string, error) {
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrUpstreamTimeout, res.err)
		}
		if errors.Is(res.err, ErrUpstreamTimeout) || errors.Is(res.err, ErrUpstreamFailure) ||
			errors.Is(res.err, ErrEmptyResponse) || errors.Is(res.err, ErrNotConfigured) {
			return "", res.err
		}
		return "", fmt.Errorf("%w: %v", ErrUpstreamFailure, res.err)
	}

	text := strings.TrimSpace(res.text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func statusLabel(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "failure"
	}
}
