package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codesherpa/internal/metrics"

	"go.uber.org/zap"
)

// Route labels recorded for the orchestrator
const (
	routeDemo = "demo"
)

// Orchestrator classifies a chat message and delegates it to a specialist agent
type Orchestrator struct {
	base
	review    Agent
	explainer Agent
}

// NewOrchestrator wires the orchestrator to its specialist agents
func NewOrchestrator(gateway Completer, memory Memory, review, explainer Agent) *Orchestrator {
	return &Orchestrator{
		base:      newBase(NewPersona(NameOrchestrator, orchestratorSystemPrompt, orchestratorDefault), gateway, memory),
		review:    review,
		explainer: explainer,
	}
}

// Process routes input["message"] and returns the routed agent's result.
// It never returns an error: failures are reported as
// {"error": "Orchestration failed: <reason>"}.
func (o *Orchestrator) Process(ctx context.Context, input map[string]interface{}, sessionID string) (result map[string]interface{}, _ error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("orchestration panicked", zap.Any("panic", r), zap.String("session_id", sessionID))
			o.observe("error", start)
			result = failure(fmt.Errorf("%v", r))
		}
	}()

	message := stringField(input, "message")

	if canned, ok := demoResponse(message); ok {
		metrics.Get().RecordRoute(routeDemo)
		o.observe("demo", start)
		return toMap(canned), nil
	}

	classification, err := o.Classify(ctx, message)
	if err != nil {
		o.log.Warn("classification failed", zap.String("session_id", sessionID), zap.Error(err))
		o.observe("error", start)
		return failure(err), nil
	}

	payload := stringField(input, "code_context")
	if strings.TrimSpace(payload) == "" {
		payload = message
	}

	var (
		target Agent
		routed map[string]interface{}
	)
	switch classification.TargetAgent {
	case NameReviewMonk:
		target = o.review
		routed = map[string]interface{}{"diff": payload, "pr_title": userQueryTitle}
	case NameCodebaseSherpa:
		target = o.explainer
		routed = map[string]interface{}{
			"action":          ActionExplain,
			"code_snippet":    payload,
			"target_language": defaultLanguage,
		}
	default:
		metrics.Get().RecordRoute(TargetGeneralChat)
		o.observe("success", start)
		return map[string]interface{}{"reply": fmt.Sprintf(generalReplyTemplate, message)}, nil
	}

	metrics.Get().RecordRoute(classification.TargetAgent)
	o.log.Debug("routing message",
		zap.String("session_id", sessionID),
		zap.String("target", classification.TargetAgent),
		zap.Float64("confidence", classification.Confidence),
	)

	if target == nil {
		o.observe("error", start)
		return failure(fmt.Errorf("agent %s is not configured", classification.TargetAgent)), nil
	}

	out, err := target.Process(ctx, routed, sessionID)
	if err != nil {
		o.log.Warn("routed agent failed",
			zap.String("session_id", sessionID),
			zap.String("target", classification.TargetAgent),
			zap.Error(err),
		)
		o.observe("error", start)
		return failure(err), nil
	}

	o.observe("success", start)
	return out, nil
}

// Classify asks the model which agent should handle message. Confidence is
// reported as returned by the model and does not influence routing.
func (o *Orchestrator) Classify(ctx context.Context, message string) (*Classification, error) {
	text, err := o.ask(ctx, classificationPrompt(message), ClassifyTemperature)
	if err != nil {
		return nil, err
	}

	var c Classification
	if err := ExtractJSON(text, &c); err != nil {
		return nil, err
	}
	c.TargetAgent = strings.TrimSpace(c.TargetAgent)
	return &c, nil
}

func failure(err error) map[string]interface{} {
	return errorResult("Orchestration failed: " + err.Error())
}
