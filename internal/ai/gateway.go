package ai

import (
	"context"
	"errors"
	"time"

	"codesherpa/internal/config"
	"codesherpa/internal/logging"
	"codesherpa/internal/metrics"

	"go.uber.org/zap"
)

// Gateway sends prompts to the configured provider. In live mode a failed
// call is answered by the mock generator for that call only; the mode itself
// never changes after construction.
type Gateway struct {
	provider  Provider
	mockDelay time.Duration
	log       *zap.Logger
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithMockDelay makes mock replies wait d, simulating model latency
func WithMockDelay(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.mockDelay = d }
}

// NewGateway creates a gateway over provider. A nil provider selects mock mode.
func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider: provider,
		log:      logging.Named("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGatewayFromConfig builds the provider selected by MODEL_PROVIDER. Missing
// or placeholder credentials, or a provider that cannot be constructed, yield
// a mock-mode gateway whose replies wait MOCK_LATENCY_MS.
func NewGatewayFromConfig(ctx context.Context, cfg *config.Config, opts ...GatewayOption) *Gateway {
	log := logging.Named("gateway")
	opts = append([]GatewayOption{WithMockDelay(cfg.MockLatency)}, opts...)

	if !cfg.HasModelCredentials() {
		log.Warn("model credentials not configured, using mock mode", zap.String("provider", cfg.ModelProvider))
		return NewGateway(nil, opts...)
	}

	var (
		provider Provider
		err      error
	)
	switch cfg.ModelProvider {
	case config.ProviderAnthropic:
		provider = NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case config.ProviderOpenAI:
		provider = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		provider, err = NewBedrockClient(ctx, BedrockConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			ModelID:         cfg.BedrockModelID,
		})
	}
	if err != nil {
		log.Error("failed to initialize model provider, using mock mode",
			zap.String("provider", cfg.ModelProvider), zap.Error(err))
		return NewGateway(nil, opts...)
	}

	log.Info("model gateway ready", zap.String("provider", provider.Name()))
	return NewGateway(provider, opts...)
}

// Mode reports ModeLive or ModeMock
func (g *Gateway) Mode() string {
	if g.provider == nil {
		return ModeMock
	}
	return ModeLive
}

// ProviderName reports the live provider, or "mock"
func (g *Gateway) ProviderName() string {
	if g.provider == nil {
		return ProviderMock
	}
	return g.provider.Name()
}

// Complete returns the model's reply to req. It only fails when ctx is done;
// provider errors are logged and replaced by the mock reply.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	start := time.Now()

	if g.provider == nil {
		if err := g.waitMock(ctx); err != nil {
			return "", err
		}
		metrics.Get().RecordGatewayCall(ProviderMock, ModeMock, "ok", time.Since(start))
		return MockResponse(req.Prompt), nil
	}

	text, err := g.provider.Complete(ctx, req)
	if err == nil {
		metrics.Get().RecordGatewayCall(g.provider.Name(), ModeLive, "ok", time.Since(start))
		return text, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.Get().RecordGatewayCall(g.provider.Name(), ModeLive, "canceled", time.Since(start))
		return "", ctxErr
	}

	metrics.Get().RecordGatewayCall(g.provider.Name(), ModeLive, "error", time.Since(start))
	metrics.Get().RecordGatewayFallback(g.provider.Name(), fallbackReason(err))
	g.log.Error("model call failed, falling back to mock response",
		zap.String("provider", g.provider.Name()),
		zap.Error(err))

	return MockResponse(req.Prompt), nil
}

func (g *Gateway) waitMock(ctx context.Context) error {
	if g.mockDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.mockDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fallbackReason(err error) string {
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	default:
		return "transport"
	}
}
