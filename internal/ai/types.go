// Package ai is the model gateway: a single text-completion call over a
// hosted model provider, with a deterministic mock generator used when no
// credentials are configured or a live call fails.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// Gateway modes, decided once at construction
const (
	ModeLive = "live"
	ModeMock = "mock"
)

// Provider names reported by the gateway
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"
)

// Request defaults
const (
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 4096
)

// ErrEmptyResponse is returned by a provider whose reply carries no text block
var ErrEmptyResponse = errors.New("model returned no text content")

// CompletionRequest is one prompt sent to the model
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// NewCompletionRequest builds a request with the default sampling settings
func NewCompletionRequest(prompt, systemPrompt string) CompletionRequest {
	return CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
	}
}

// Provider is a live model backend. Complete returns the first text block of the reply.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Provider error kinds
const (
	KindRateLimit     = "rate_limit"
	KindUnauthorized  = "unauthorized"
	KindForbidden     = "forbidden"
	KindQuotaExceeded = "quota_exceeded"
	KindServiceError  = "service_error"
	KindAPIError      = "api_error"
)

// ProviderError is a non-success reply from a model provider
type ProviderError struct {
	Provider   string
	Kind       string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
}

// classifyStatus maps an HTTP status from a provider to a ProviderError
func classifyStatus(provider string, status int, body string) *ProviderError {
	pe := &ProviderError{Provider: provider, StatusCode: status}
	switch status {
	case 429:
		pe.Kind, pe.Message = KindRateLimit, "rate limit exceeded"
	case 401:
		pe.Kind, pe.Message = KindUnauthorized, "invalid API key"
	case 403:
		pe.Kind, pe.Message = KindForbidden, "access denied, check API key permissions"
	case 402:
		pe.Kind, pe.Message = KindQuotaExceeded, "quota exhausted"
	case 500, 502, 503, 504, 529:
		pe.Kind, pe.Message = KindServiceError, "service temporarily unavailable"
	default:
		pe.Kind, pe.Message = KindAPIError, truncateRunes(body, 500)
	}
	return pe
}
