package generation

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChain adapts any langchaingo model to Backend
type LangChain struct {
	name  string
	model llms.Model
}

func NewLangChain(name string, model llms.Model) *LangChain {
	return &LangChain{name: name, model: model}
}

// ProviderSettings carries what the langchaingo providers need
type ProviderSettings struct {
	Model   string
	APIKey  string
	BaseURL string
}

func newOpenAI(p ProviderSettings) (llms.Model, error) {
	if p.APIKey == "" {
		return nil, ErrNotConfigured
	}
	opts := []openai.Option{openai.WithToken(p.APIKey)}
	if p.Model != "" {
		opts = append(opts, openai.WithModel(p.Model))
	}
	if p.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.BaseURL))
	}
	return openai.New(opts...)
}

func newAnthropic(p ProviderSettings) (llms.Model, error) {
	if p.APIKey == "" {
		return nil, ErrNotConfigured
	}
	opts := []anthropic.Option{anthropic.WithToken(p.APIKey)}
	if p.Model != "" {
		opts = append(opts, anthropic.WithModel(p.Model))
	}
	return anthropic.New(opts...)
}

func newOllama(p ProviderSettings) (llms.Model, error) {
	if p.Model == "" {
		return nil, ErrNotConfigured
	}
	opts := []ollama.Option{ollama.WithModel(p.Model)}
	if p.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(p.BaseURL))
	}
	return ollama.New(opts...)
}

func (l *LangChain) Name() string { return l.name }

func (l *LangChain) Available() bool { return l.model != nil }

func (l *LangChain) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	options := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := l.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", fmt.Errorf("%s generate content: %w", l.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("%w: %s returned no choices", ErrUpstreamFailure, l.name)
	}

	text := resp.Choices[0].Content
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
