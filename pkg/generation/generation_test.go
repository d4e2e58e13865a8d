package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/goleak"

	"support-assistant/pkg/config"
	"support-assistant/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetricsWithRegisterer(prometheus.NewRegistry())
}

type stubBackend struct {
	name     string
	generate func(ctx context.Context, req Request) (string, error)
	calls    int
}

func (s *stubBackend) Name() string    { return s.name }
func (s *stubBackend) Available() bool { return true }
func (s *stubBackend) Generate(ctx context.Context, req Request) (string, error) {
	s.calls++
	return s.generate(ctx, req)
}

func TestGuarded_Success(t *testing.T) {
	backend := &stubBackend{name: "stub", generate: func(ctx context.Context, req Request) (string, error) {
		assert.Equal(t, "hello", req.Prompt)
		return "  world  ", nil
	}}
	g := NewGuarded(backend, time.Second, testLogger(), testMetrics())

	text, err := g.Generate(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "world", text)
	assert.True(t, g.Available())
	assert.Equal(t, "stub", g.Name())
}

func TestGuarded_Timeout(t *testing.T) {
	backend := &stubBackend{name: "slow", generate: func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "too late", ctx.Err()
	}}
	g := NewGuarded(backend, 20*time.Millisecond, testLogger(), testMetrics())

	start := time.Now()
	_, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuarded_NonPositiveTimeoutStillBounded(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		g := NewGuarded(&stubBackend{name: "any"}, timeout, testLogger(), testMetrics())
		assert.Equal(t, 20*time.Second, g.timeout)
	}
}

func TestGuarded_AbandonsBackendIgnoringDeadline(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	backend := &stubBackend{name: "stuck", generate: func(ctx context.Context, req Request) (string, error) {
		defer close(done)
		<-release
		return "late text", nil
	}}
	g := NewGuarded(backend, 20*time.Millisecond, testLogger(), testMetrics())

	text, err := g.Generate(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Empty(t, text)

	close(release)
	<-done
}

func TestGuarded_FailureClassification(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		err      error
		expected error
	}{
		{name: "transport error", err: errors.New("connection refused"), expected: ErrUpstreamFailure},
		{name: "empty payload", text: "   ", expected: ErrEmptyResponse},
		{name: "typed empty", err: ErrEmptyResponse, expected: ErrEmptyResponse},
		{name: "deadline from backend", err: context.DeadlineExceeded, expected: ErrUpstreamTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{name: "stub", generate: func(ctx context.Context, req Request) (string, error) {
				return tt.text, tt.err
			}}
			g := NewGuarded(backend, time.Second, testLogger(), testMetrics())

			_, err := g.Generate(context.Background(), Request{Prompt: "x"})
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestGuarded_DisabledNeverCalls(t *testing.T) {
	g := NewGuarded(nil, time.Second, testLogger(), testMetrics())

	assert.False(t, g.Available())
	assert.Equal(t, "none", g.Name())
	_, err := g.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type stubModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	reply    *llms.ContentResponse
	err      error
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	return m.reply, m.err
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChain_Generate(t *testing.T) {
	model := &stubModel{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Reset it from Settings."}}}}
	backend := NewLangChain("openai", model)

	text, err := backend.Generate(context.Background(), Request{
		System:      "be helpful",
		Prompt:      "how do I reset my password",
		MaxTokens:   300,
		Temperature: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Reset it from Settings.", text)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, 300, model.options.MaxTokens)
	assert.Equal(t, 0.0, model.options.Temperature)
}

func TestLangChain_NoChoices(t *testing.T) {
	backend := NewLangChain("openai", &stubModel{reply: &llms.ContentResponse{}})

	_, err := backend.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrUpstreamFailure)
}

type stubSession struct {
	texts []string
	err   error
}

func (s *stubSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &gollem.Response{Texts: s.texts}, nil
}

func (s *stubSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *stubSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *stubSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *stubSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type stubLLMClient struct {
	session  *stubSession
	sessions int
}

func (c *stubLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	c.sessions++
	return c.session, nil
}

func (c *stubLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func TestGollem_Generate(t *testing.T) {
	client := &stubLLMClient{session: &stubSession{texts: []string{"Open Billing ", "and edit the address."}}}
	backend := NewGollem(client)

	text, err := backend.Generate(context.Background(), Request{System: "sys", Prompt: "billing address"})
	require.NoError(t, err)
	assert.Equal(t, "Open Billing and edit the address.", text)
	assert.Equal(t, 1, client.sessions)

	empty := NewGollem(&stubLLMClient{session: &stubSession{}})
	_, err = empty.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		cfg       *config.Config
		available bool
		backend   string
		wantErr   bool
	}{
		{name: "unset", cfg: &config.Config{}, available: false, backend: "none"},
		{name: "explicit none", cfg: &config.Config{GenerationProvider: "none"}, available: false, backend: "none"},
		{name: "openai without key", cfg: &config.Config{GenerationProvider: "openai"}, available: false, backend: "none"},
		{name: "gemini without key", cfg: &config.Config{GenerationProvider: "gemini"}, available: false, backend: "none"},
		{name: "vertex without project", cfg: &config.Config{GenerationProvider: "vertex"}, available: false, backend: "none"},
		{name: "ollama with model", cfg: &config.Config{GenerationProvider: "Ollama", GenerationModel: "llama3"}, available: true, backend: "ollama"},
		{name: "unknown provider", cfg: &config.Config{GenerationProvider: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(ctx, tt.cfg, testLogger(), testMetrics())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.available, g.Available())
			assert.Equal(t, tt.backend, g.Name())
		})
	}
}
