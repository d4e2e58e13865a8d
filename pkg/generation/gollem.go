package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
)

// Gollem runs Gemini on Vertex AI through a gollem client. Sampling
// parameters are left to the client's model defaults.
type Gollem struct {
	client gollem.LLMClient
}

func NewGollem(client gollem.LLMClient) *Gollem {
	return &Gollem{client: client}
}

// NewVertexGollem creates a Vertex AI Gemini client. An empty project ID disables the backend.
func NewVertexGollem(ctx context.Context, projectID, location string) (*Gollem, error) {
	if projectID == "" {
		return nil, ErrNotConfigured
	}

	client, err := gemini.New(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex Gemini client: %w", err)
	}
	return NewGollem(client), nil
}

func (g *Gollem) Name() string { return "vertex" }

func (g *Gollem) Available() bool { return g.client != nil }

func (g *Gollem) Generate(ctx context.Context, req Request) (string, error) {
	var opts []gollem.SessionOption
	if req.System != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(req.System))
	}

	session, err := g.client.NewSession(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create LLM session: %w", err)
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from LLM: %w", err)
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.Join(resp.Texts, ""), nil
}
