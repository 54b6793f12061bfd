package agents

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// LastReviewKey is the memory key holding a session's most recent review
const LastReviewKey = "last_review"

// ErrNoDiff is returned by Review when the diff is the empty string
var ErrNoDiff = errors.New("no diff provided")

// ReviewAgent ("Review Monk") turns a diff into a structured review
type ReviewAgent struct {
	base
}

// NewReviewAgent creates the review persona
func NewReviewAgent(gateway Completer, memory Memory) *ReviewAgent {
	return &ReviewAgent{
		base: newBase(NewPersona(NameReviewMonk, reviewSystemPrompt, ReviewTemperature), gateway, memory),
	}
}

// Process reviews input["diff"]. Recognized fields: diff, pr_title, language.
func (a *ReviewAgent) Process(ctx context.Context, input map[string]interface{}, sessionID string) (map[string]interface{}, error) {
	result, err := a.review(ctx,
		stringFieldOr(input, "pr_title", defaultPRTitle),
		stringField(input, "diff"),
		stringField(input, "language"),
		sessionID,
	)

	var parseErr *ParseError
	switch {
	case errors.Is(err, ErrNoDiff):
		return errorResult("No diff provided"), nil
	case errors.As(err, &parseErr):
		return map[string]interface{}{
			"error":        "Failed to parse AI response",
			"raw_response": parseErr.Raw,
		}, nil
	case err != nil:
		return nil, err
	}
	return toMap(result), nil
}

// Review runs a review and returns the typed result. Unparseable model
// output is reported as a *ParseError.
func (a *ReviewAgent) Review(ctx context.Context, title, diff, sessionID string) (*ReviewResult, error) {
	if title == "" {
		title = defaultPRTitle
	}
	return a.review(ctx, title, diff, "", sessionID)
}

func (a *ReviewAgent) review(ctx context.Context, title, diff, language, sessionID string) (*ReviewResult, error) {
	start := time.Now()

	if diff == "" {
		a.observe("invalid_input", start)
		return nil, ErrNoDiff
	}

	text, err := a.ask(ctx, reviewPrompt(title, diff, language), a.Temperature())
	if err != nil {
		a.observe("error", start)
		return nil, err
	}

	result, err := ParseReview(text)
	if err != nil {
		a.log.Warn("review output did not parse", zap.String("session_id", sessionID), zap.Error(err))
		a.observe("parse_error", start)
		return nil, err
	}

	if err := a.SaveContext(ctx, sessionID, LastReviewKey, result); err != nil {
		a.log.Warn("failed to store last review", zap.String("session_id", sessionID), zap.Error(err))
	}

	a.observe("success", start)
	return result, nil
}

// ParseReview extracts a ReviewResult from model text and normalizes it
func ParseReview(text string) (*ReviewResult, error) {
	var result ReviewResult
	if err := ExtractJSON(text, &result); err != nil {
		return nil, err
	}
	result.normalize()
	return &result, nil
}
