package agents

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"codesherpa/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classificationReply(target string, confidence float64) string {
	return fmt.Sprintf(`{"target_agent":%q,"confidence":%v,"reasoning":"test"}`, target, confidence)
}

func newTestOrchestrator(gw Completer) (*Orchestrator, *stubAgent, *stubAgent) {
	review := &stubAgent{name: NameReviewMonk, out: map[string]interface{}{"summary": "reviewed"}}
	explainer := &stubAgent{name: NameCodebaseSherpa, out: map[string]interface{}{"explanation": "explained"}}
	return NewOrchestrator(gw, newMemory(), review, explainer), review, explainer
}

func TestOrchestrator_DemoShortcut(t *testing.T) {
	tests := []struct {
		name    string
		message string
		review  bool
	}{
		{"demo review", "demo review please", true},
		{"case insensitive", "Show me a DEMO of a Review", true},
		{"review wins over hindi", "demo review in hindi", true},
		{"hindi", "demo in hindi", false},
		{"namaste", "Namaste, run the demo", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			o, review, explainer := newTestOrchestrator(gw)

			out, err := o.Process(context.Background(), map[string]interface{}{"message": tt.message}, "s1")
			require.NoError(t, err)
			assert.Zero(t, gw.callCount())
			assert.Empty(t, review.inputs)
			assert.Empty(t, explainer.inputs)

			if tt.review {
				assert.Equal(t, toMap(DemoReview()), out)
			} else {
				assert.Equal(t, toMap(DemoHindiExplanation()), out)
			}
		})
	}
}

func TestOrchestrator_DemoReviewContents(t *testing.T) {
	o, _, _ := newTestOrchestrator(&fakeGateway{})

	out, err := o.Process(context.Background(), map[string]interface{}{"message": "demo review please"}, "s1")
	require.NoError(t, err)

	assert.Equal(t, float64(6), out["quality_score"])
	assert.Equal(t, "High", out["security_risk"])
	findings := out["findings"].([]interface{})
	first := findings[0].(map[string]interface{})
	assert.Equal(t, "CRITICAL", first["severity"])
	assert.Equal(t, "auth/token.py", first["file"])
}

func TestOrchestrator_DemoWithoutKeywordIsClassified(t *testing.T) {
	gw := &fakeGateway{replies: []string{classificationReply(TargetGeneralChat, 0.9)}}
	o, _, _ := newTestOrchestrator(gw)

	out, err := o.Process(context.Background(), map[string]interface{}{"message": "book a demo"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.callCount())
	assert.Equal(t, "I can help you with code reviews or learning. You said: book a demo", out["reply"])
}

func TestOrchestrator_Routing(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		input        map[string]interface{}
		wantReview   map[string]interface{}
		wantExplain  map[string]interface{}
		wantResponse map[string]interface{}
	}{
		{
			name:         "review with code context",
			target:       NameReviewMonk,
			input:        map[string]interface{}{"message": "review this", "code_context": "+x := 1"},
			wantReview:   map[string]interface{}{"diff": "+x := 1", "pr_title": "User Query"},
			wantResponse: map[string]interface{}{"summary": "reviewed"},
		},
		{
			name:         "review falls back to message",
			target:       NameReviewMonk,
			input:        map[string]interface{}{"message": "+y := 2"},
			wantReview:   map[string]interface{}{"diff": "+y := 2", "pr_title": "User Query"},
			wantResponse: map[string]interface{}{"summary": "reviewed"},
		},
		{
			name:   "explainer",
			target: NameCodebaseSherpa,
			input:  map[string]interface{}{"message": "what does this do", "code_context": "fmt.Println()"},
			wantExplain: map[string]interface{}{
				"action":          "explain",
				"code_snippet":    "fmt.Println()",
				"target_language": "English",
			},
			wantResponse: map[string]interface{}{"explanation": "explained"},
		},
		{
			name:         "unknown target echoes",
			target:       "weather_bot",
			input:        map[string]interface{}{"message": "hello"},
			wantResponse: map[string]interface{}{"reply": "I can help you with code reviews or learning. You said: hello"},
		},
		{
			name:         "empty target echoes",
			target:       "",
			input:        map[string]interface{}{"message": "hi"},
			wantResponse: map[string]interface{}{"reply": "I can help you with code reviews or learning. You said: hi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{replies: []string{"```json\n" + classificationReply(tt.target, 0.9) + "\n```"}}
			o, review, explainer := newTestOrchestrator(gw)

			out, err := o.Process(context.Background(), tt.input, "s1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantResponse, out)

			if tt.wantReview != nil {
				require.Len(t, review.inputs, 1)
				assert.Equal(t, tt.wantReview, review.inputs[0])
			} else {
				assert.Empty(t, review.inputs)
			}
			if tt.wantExplain != nil {
				require.Len(t, explainer.inputs, 1)
				assert.Equal(t, tt.wantExplain, explainer.inputs[0])
			} else {
				assert.Empty(t, explainer.inputs)
			}

			req := gw.calls[0]
			assert.Equal(t, ClassifyTemperature, req.Temperature)
			assert.Equal(t, orchestratorSystemPrompt, req.SystemPrompt)
			assert.Contains(t, req.Prompt, "Classify the intent")
		})
	}
}

// Confidence is parsed but never gates routing: even a near-zero score is
// routed to the labelled agent.
func TestOrchestrator_ConfidenceIsNotConsulted(t *testing.T) {
	for _, confidence := range []float64{0, 0.01, 0.5, 1} {
		gw := &fakeGateway{replies: []string{
			classificationReply(NameReviewMonk, confidence),
			classificationReply(NameReviewMonk, confidence),
		}}
		o, review, _ := newTestOrchestrator(gw)

		c, err := o.Classify(context.Background(), "look at my diff")
		require.NoError(t, err)
		assert.InDelta(t, confidence, c.Confidence, 1e-9)

		_, err = o.Process(context.Background(), map[string]interface{}{"message": "look at my diff"}, "s1")
		require.NoError(t, err)
		assert.Len(t, review.inputs, 1, "confidence %v", confidence)
	}
}

func TestOrchestrator_LooselyTypedClassificationStillRoutes(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		confidence float64
		reasoning  string
	}{
		{"string confidence", `{"target_agent":"review_monk","confidence":"0.9","reasoning":"x"}`, 0.9, "x"},
		{"word confidence", `{"target_agent":"review_monk","confidence":"high","reasoning":"x"}`, 0, "x"},
		{"list reasoning", `{"target_agent":"review_monk","confidence":0.7,"reasoning":["a","b"]}`, 0.7, `["a","b"]`},
		{"missing fields", `{"target_agent":"review_monk"}`, 0, ""},
		{"null fields", `{"target_agent":"review_monk","confidence":null,"reasoning":null}`, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{replies: []string{tt.reply, tt.reply}}
			o, review, _ := newTestOrchestrator(gw)

			c, err := o.Classify(context.Background(), "look at my diff")
			require.NoError(t, err)
			assert.Equal(t, NameReviewMonk, c.TargetAgent)
			assert.InDelta(t, tt.confidence, c.Confidence, 1e-9)
			assert.Equal(t, tt.reasoning, c.Reasoning)

			out, err := o.Process(context.Background(), map[string]interface{}{"message": "look at my diff"}, "s1")
			require.NoError(t, err)
			assert.NotContains(t, out, "error")
			assert.Len(t, review.inputs, 1)
		})
	}
}

func TestOrchestrator_Failures(t *testing.T) {
	t.Run("unparseable classification", func(t *testing.T) {
		gw := &fakeGateway{replies: []string{"I would route this to the reviewer"}}
		o, _, _ := newTestOrchestrator(gw)

		out, err := o.Process(context.Background(), map[string]interface{}{"message": "hi"}, "s1")
		require.NoError(t, err)
		msg, _ := out["error"].(string)
		assert.True(t, strings.HasPrefix(msg, "Orchestration failed: "), msg)
	})

	t.Run("gateway error", func(t *testing.T) {
		gw := &fakeGateway{err: context.DeadlineExceeded}
		o, _, _ := newTestOrchestrator(gw)

		out, err := o.Process(context.Background(), map[string]interface{}{"message": "hi"}, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Orchestration failed: "+context.DeadlineExceeded.Error(), out["error"])
	})

	t.Run("routed agent error", func(t *testing.T) {
		gw := &fakeGateway{replies: []string{classificationReply(NameCodebaseSherpa, 1)}}
		o, _, explainer := newTestOrchestrator(gw)
		explainer.err = context.Canceled

		out, err := o.Process(context.Background(), map[string]interface{}{"message": "explain"}, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Orchestration failed: context canceled", out["error"])
	})

	t.Run("routed agent panic", func(t *testing.T) {
		gw := &fakeGateway{replies: []string{classificationReply(NameReviewMonk, 1)}}
		o, review, _ := newTestOrchestrator(gw)
		review.panics = true

		out, err := o.Process(context.Background(), map[string]interface{}{"message": "review"}, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Orchestration failed: boom", out["error"])
	})

	t.Run("missing specialist", func(t *testing.T) {
		gw := &fakeGateway{replies: []string{classificationReply(NameReviewMonk, 1)}}
		o := NewOrchestrator(gw, nil, nil, nil)

		out, err := o.Process(context.Background(), map[string]interface{}{"message": "review"}, "s1")
		require.NoError(t, err)
		assert.Contains(t, out["error"], "Orchestration failed: ")
	})
}

func newMockPipeline() *Orchestrator {
	gw := ai.NewGateway(nil)
	mem := newMemory()
	return NewOrchestrator(gw, mem, NewReviewAgent(gw, mem), NewExplainerAgent(gw, mem))
}

func TestOrchestrator_MockModeEndToEnd(t *testing.T) {
	o := newMockPipeline()
	ctx := context.Background()

	t.Run("review", func(t *testing.T) {
		out, err := o.Process(ctx, map[string]interface{}{
			"message":      "please review this diff",
			"code_context": "--- a/main.py\n+++ b/main.py\n+print('hi')",
		}, "e2e")
		require.NoError(t, err)
		require.NotContains(t, out, "error")

		assert.IsType(t, "", out["summary"])
		assert.IsType(t, []interface{}{}, out["findings"])
		score, ok := out["quality_score"].(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, float64(1))
		assert.LessOrEqual(t, score, float64(10))
		assert.Contains(t, []string{"None", "Low", "High"}, out["security_risk"])
	})

	t.Run("explain", func(t *testing.T) {
		out, err := o.Process(ctx, map[string]interface{}{
			"message":      "explain this function",
			"code_context": "def add(a, b): return a + b",
		}, "e2e")
		require.NoError(t, err)
		assert.NotEmpty(t, out["explanation"])
		assert.NotEmpty(t, out["learning_steps"])
	})

	t.Run("general chat", func(t *testing.T) {
		out, err := o.Process(ctx, map[string]interface{}{"message": "good morning"}, "e2e")
		require.NoError(t, err)
		assert.Equal(t, "I can help you with code reviews or learning. You said: good morning", out["reply"])
	})
}

func TestOrchestrator_MockClassificationIsDeterministic(t *testing.T) {
	o := newMockPipeline()

	first, err := o.Classify(context.Background(), "can you review my PR?")
	require.NoError(t, err)
	second, err := o.Classify(context.Background(), "can you review my PR?")
	require.NoError(t, err)

	assert.Equal(t, NameReviewMonk, first.TargetAgent)
	assert.Equal(t, first.TargetAgent, second.TargetAgent)
	assert.Equal(t, first.Reasoning, second.Reasoning)
}
