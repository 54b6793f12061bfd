package agents

import (
	"fmt"
	"strings"
)

// Sampling temperatures per persona
const (
	ClassifyTemperature  = 0.1
	ReviewTemperature    = 0.2
	ExplainTemperature   = 0.7
	orchestratorDefault  = 0.5
	maxDiffChars         = 20000
	defaultPRTitle       = "Unknown PR"
	defaultLanguage      = "English"
	userQueryTitle       = "User Query"
	generalReplyTemplate = "I can help you with code reviews or learning. You said: %s"
)

// Explainer actions
const (
	ActionExplain      = "explain"
	ActionLearningPath = "learning_path"
)

const orchestratorSystemPrompt = `You are the 'Orchestrator' of CodeSherpa, an AI platform for developers.
Your job is to classify the user's intent and route the request to the right specialist agent.

Available agents:
1. review_monk (Review Monk): code reviews, pull request analysis, bug detection, reading diffs.
2. codebase_sherpa (Codebase Sherpa): explaining code, learning concepts, documentation, understanding files.

If the request fits neither agent, choose general_chat.

Respond ONLY with a JSON object in this format:
{
    "target_agent": "review_monk" | "codebase_sherpa" | "general_chat",
    "confidence": 0.0 to 1.0,
    "reasoning": "one short sentence"
}`

const reviewSystemPrompt = `You are 'Review Monk', a senior code reviewer mentoring Indian developers.
Open with a warm "Namaste" tone and stay constructive.

Look for:
1. Logic errors and unhandled edge cases.
2. Security issues, with the OWASP Top 10 in mind.
3. Timezone bugs, especially IST (Asia/Kolkata) versus UTC handling.
4. Incorrect AWS SDK or boto3 usage.

Light Hinglish is fine when it helps the explanation.

Respond ONLY with a JSON object in this format:
{
    "summary": "overall assessment",
    "findings": [
        {
            "severity": "CRITICAL" | "HIGH" | "MEDIUM" | "LOW",
            "file": "path/to/file",
            "line": 42,
            "issue": "what is wrong",
            "suggestion": "how to fix it",
            "code_fix": "corrected code"
        }
    ],
    "quality_score": 1 to 10,
    "security_risk": "None" | "Low" | "High"
}`

const explainerSystemPrompt = `You are 'Codebase Sherpa', a patient mentor who guides developers through unfamiliar code.
Use analogies from everyday Indian life (chai stalls, cricket, local trains, family weddings) when they make a concept click.
Answer in the target language requested: English, Hindi, or Hinglish.

Respond ONLY with a JSON object in this format:
{
    "explanation": "clear explanation",
    "learning_steps": ["Step 1: ...", "Step 2: ..."],
    "key_concepts": [{"term": "...", "definition": "..."}],
    "analogy": "a relatable local analogy"
}`

func classificationPrompt(message string) string {
	return fmt.Sprintf("User Message: '%s'\n\nClassify the intent and choose the best agent.", message)
}

func reviewPrompt(title, diff, language string) string {
	var b strings.Builder
	b.WriteString("Please review the following Pull Request:\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	if language != "" {
		fmt.Fprintf(&b, "Primary Language: %s\n", language)
	}
	fmt.Fprintf(&b, "\nCode Diff:\n```\n%s\n```\n\n", truncateRunes(diff, maxDiffChars))
	b.WriteString("Analyze this diff and provide a structured JSON review with findings, a quality score, and the overall security risk.")
	return b.String()
}

func explainPrompt(code, filePath, language string) string {
	var b strings.Builder
	b.WriteString("Task: Explain the following code snippet.\n")
	fmt.Fprintf(&b, "Target Language: %s\n", language)
	if filePath != "" {
		fmt.Fprintf(&b, "File: %s\n", filePath)
	}
	fmt.Fprintf(&b, "\nCode:\n```\n%s\n```\n\n", code)
	b.WriteString("Provide a detailed breakdown, key concepts, and a local analogy that makes it easy to remember.")
	return b.String()
}

func learningPathPrompt(code, filePath, language string) string {
	var b strings.Builder
	b.WriteString("Task: Create a learning path for this code module.\n")
	fmt.Fprintf(&b, "Target Language: %s\n", language)
	if filePath != "" {
		fmt.Fprintf(&b, "File: %s\n", filePath)
	}
	fmt.Fprintf(&b, "\nCode/Context:\n```\n%s\n```\n\n", code)
	b.WriteString("Suggest a step-by-step path to master the concepts used here, from fundamentals to the code itself.")
	return b.String()
}
