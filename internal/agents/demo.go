package agents

import "strings"

// DemoReview is the canned review returned for "demo review" requests
func DemoReview() ReviewResult {
	return ReviewResult{
		Summary: "This PR refactors the authentication logic but introduces a potential security risk in token validation.",
		Findings: []Finding{
			{
				Severity:   SeverityCritical,
				File:       "auth/token.py",
				Line:       45,
				Issue:      "Hardcoded secret key in token validation",
				Suggestion: "Use environment variables for secrets",
				CodeFix:    "secret = os.getenv('JWT_SECRET')",
			},
			{
				Severity:   SeverityMedium,
				File:       "utils/date.py",
				Line:       12,
				Issue:      "Date handling is not timezone aware (IST issue)",
				Suggestion: "Use pytz to handle Asia/Kolkata timezone explicitly",
				CodeFix:    "datetime.now(pytz.timezone('Asia/Kolkata'))",
			},
		},
		QualityScore: 6,
		SecurityRisk: RiskHigh,
	}
}

// DemoHindiExplanation is the canned explanation returned for "demo hindi" requests
func DemoHindiExplanation() ExplanationResult {
	return ExplanationResult{
		Explanation: "नमस्ते! 🙏 इस कोड में हम React `useEffect` हुक का उपयोग कर रहे हैं। यह तब चलता है जब component लोड होता है।",
		LearningSteps: []string{
			"Step 1: Understand Component Lifecycle",
			"Step 2: Learn Dependency Array []",
			"Step 3: Cleanup functions",
		},
		KeyConcepts: []KeyConcept{
			{Term: "Hook", Definition: "A function that lets you hook into React state"},
			{Term: "Side Effect", Definition: "Operations like fetching data"},
		},
		Analogy: "Sochna jaise ghar mein bijli aati hai (Mounting), aur jab jaati hai (Unmounting). useEffect switch ki tarah kaam karta hai.",
	}
}

// demoResponse returns the canned result for message, if any. Matching is
// case-insensitive and review wins over the Hindi explanation.
func demoResponse(message string) (interface{}, bool) {
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "demo") {
		return nil, false
	}
	if strings.Contains(lower, "review") {
		return DemoReview(), true
	}
	if strings.Contains(lower, "hindi") || strings.Contains(lower, "namaste") {
		return DemoHindiExplanation(), true
	}
	return nil, false
}
