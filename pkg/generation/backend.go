package generation

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means no generation backend is configured. It is a routing
	// signal, not a failure: callers skip straight to their deterministic path.
	ErrNotConfigured = errors.New("generation backend not configured")

	// ErrUpstreamTimeout means the backend did not answer within the deadline
	ErrUpstreamTimeout = errors.New("generation backend timed out")

	// ErrUpstreamFailure covers transport errors, non-2xx responses and malformed payloads
	ErrUpstreamFailure = errors.New("generation backend failed")

	// ErrEmptyResponse means the backend answered with no usable text
	ErrEmptyResponse = errors.New("generation backend returned no text")
)

// Request is a single-shot generation request
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend is an external text generator. Available must be answerable without
// a network call so callers can route around an unconfigured backend.
type Backend interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// Disabled is the fallback backend used when nothing is configured
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Available() bool { return false }

func (Disabled) Generate(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}
