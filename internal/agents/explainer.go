package agents

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ExplainerAgent ("Codebase Sherpa") explains code and proposes learning paths
type ExplainerAgent struct {
	base
}

// NewExplainerAgent creates the explainer persona
func NewExplainerAgent(gateway Completer, memory Memory) *ExplainerAgent {
	return &ExplainerAgent{
		base: newBase(NewPersona(NameCodebaseSherpa, explainerSystemPrompt, ExplainTemperature), gateway, memory),
	}
}

// Process handles input fields action, code_snippet, file_path and target_language.
// Unparseable model output is returned as the explanation text.
func (a *ExplainerAgent) Process(ctx context.Context, input map[string]interface{}, sessionID string) (map[string]interface{}, error) {
	start := time.Now()

	action := stringFieldOr(input, "action", ActionExplain)
	code := stringField(input, "code_snippet")
	filePath := stringField(input, "file_path")
	language := stringFieldOr(input, "target_language", defaultLanguage)

	var prompt string
	switch action {
	case ActionExplain:
		prompt = explainPrompt(code, filePath, language)
	case ActionLearningPath:
		prompt = learningPathPrompt(code, filePath, language)
	default:
		a.observe("invalid_input", start)
		return errorResult("Unknown action"), nil
	}

	text, err := a.ask(ctx, prompt, a.Temperature())
	if err != nil {
		a.observe("error", start)
		return nil, err
	}

	result, err := ParseExplanation(text)
	if err != nil {
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			a.observe("error", start)
			return nil, err
		}
		a.log.Debug("explanation output did not parse, returning raw text",
			zap.String("session_id", sessionID),
			zap.String("action", action),
			zap.Error(err),
		)
		a.observe("parse_error", start)
		return toMap(rawExplanation(text)), nil
	}

	a.observe("success", start)
	return toMap(result), nil
}

// ParseExplanation extracts an ExplanationResult from model text
func ParseExplanation(text string) (*ExplanationResult, error) {
	var result ExplanationResult
	if err := ExtractJSON(text, &result); err != nil {
		return nil, err
	}
	result.normalize()
	return &result, nil
}

func rawExplanation(text string) ExplanationResult {
	return ExplanationResult{
		Explanation:   text,
		LearningSteps: []string{},
		KeyConcepts:   []KeyConcept{},
		Analogy:       "N/A",
	}
}
