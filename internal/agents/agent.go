package agents

import (
	"context"
	"fmt"
	"time"

	"codesherpa/internal/ai"
	"codesherpa/internal/cache"
	"codesherpa/internal/logging"
	"codesherpa/internal/metrics"

	"go.uber.org/zap"
)

// Agent is a persona with a single entry point. Process returns the result
// map sent back to the caller; an error is only returned when the request
// context ends before the model answers.
type Agent interface {
	Name() string
	Process(ctx context.Context, input map[string]interface{}, sessionID string) (map[string]interface{}, error)
}

// Completer is the model gateway as seen by an agent
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (string, error)
}

// Memory is the session memory as seen by an agent
type Memory interface {
	Save(ctx context.Context, agentName, sessionID, key string, value interface{}, ttl time.Duration) error
	Load(ctx context.Context, agentName, sessionID, key string, dest interface{}) (bool, error)
}

// Persona is the fixed identity of an agent
type Persona struct {
	name         string
	systemPrompt string
	temperature  float64
}

// NewPersona creates an immutable persona
func NewPersona(name, systemPrompt string, temperature float64) Persona {
	return Persona{name: name, systemPrompt: systemPrompt, temperature: temperature}
}

// Name returns the persona name
func (p Persona) Name() string { return p.name }

// SystemPrompt returns the instruction prompt sent with every model call
func (p Persona) SystemPrompt() string { return p.systemPrompt }

// Temperature returns the default sampling temperature
func (p Persona) Temperature() float64 { return p.temperature }

// base carries what every agent shares: its persona, the gateway and
// memory scoped to the persona name.
type base struct {
	Persona
	gateway Completer
	memory  Memory
	log     *zap.Logger
}

func newBase(p Persona, gateway Completer, memory Memory) base {
	if memory == nil {
		memory = cache.NewSessionMemory(nil)
	}
	return base{
		Persona: p,
		gateway: gateway,
		memory:  memory,
		log:     logging.Named(p.name),
	}
}

// ask sends prompt with the persona's system prompt and the given temperature
func (b *base) ask(ctx context.Context, prompt string, temperature float64) (string, error) {
	req := ai.NewCompletionRequest(prompt, b.systemPrompt)
	req.Temperature = temperature
	return b.gateway.Complete(ctx, req)
}

// SaveContext stores value under this agent's namespace with the default TTL
func (b *base) SaveContext(ctx context.Context, sessionID, key string, value interface{}) error {
	return b.memory.Save(ctx, b.name, sessionID, key, value, cache.DefaultTTL)
}

// LoadContext reads a value from this agent's namespace into dest
func (b *base) LoadContext(ctx context.Context, sessionID, key string, dest interface{}) (bool, error) {
	return b.memory.Load(ctx, b.name, sessionID, key, dest)
}

// observe records an invocation outcome
func (b *base) observe(outcome string, start time.Time) {
	metrics.Get().RecordAgentInvocation(b.name, outcome, time.Since(start))
}

// errorResult is the explicit error object returned for invalid input
func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

// stringField reads a field as a string. Non-string scalars are formatted;
// missing and null fields read as empty.
func stringField(input map[string]interface{}, key string) string {
	v, ok := input[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// stringFieldOr is stringField with a default for an absent key. A key that
// is present keeps its value, even when empty.
func stringFieldOr(input map[string]interface{}, key, def string) string {
	if _, ok := input[key]; !ok {
		return def
	}
	return stringField(input, key)
}

// truncateRunes returns at most n runes of s
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
