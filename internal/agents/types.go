// Package agents implements the CodeSherpa agent personas: the orchestrator
// that classifies intent, the Review Monk that reviews diffs, and the
// Codebase Sherpa that explains code.
package agents

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Agent names, also used as classification targets and memory namespaces
const (
	NameOrchestrator   = "orchestrator"
	NameReviewMonk     = "review_monk"
	NameCodebaseSherpa = "codebase_sherpa"
	TargetGeneralChat  = "general_chat"
)

// Finding severities
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Security risk levels
const (
	RiskNone = "None"
	RiskLow  = "Low"
	RiskHigh = "High"
)

// Classification is the orchestrator's reading of user intent
type Classification struct {
	TargetAgent string  `json:"target_agent"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// UnmarshalJSON requires an object but decodes confidence and reasoning on a
// best-effort basis: a wrongly typed value is dropped, never fatal.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var raw struct {
		TargetAgent json.RawMessage `json:"target_agent"`
		Confidence  json.RawMessage `json:"confidence"`
		Reasoning   json.RawMessage `json:"reasoning"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Classification{
		TargetAgent: looseString(raw.TargetAgent),
		Confidence:  looseFloat(raw.Confidence),
		Reasoning:   looseString(raw.Reasoning),
	}
	return nil
}

// looseString returns a JSON string's value, or the raw JSON text for any
// other non-null value
func looseString(data json.RawMessage) string {
	if len(data) == 0 || string(data) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return string(data)
}

// looseFloat accepts 0.9 and "0.9"; anything else reads as 0
func looseFloat(data json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

// ReviewResult is the structured output of a diff review
type ReviewResult struct {
	Summary      string    `json:"summary"`
	Findings     []Finding `json:"findings"`
	QualityScore int       `json:"quality_score"`
	SecurityRisk string    `json:"security_risk"`
}

// Finding is one issue raised in a review
type Finding struct {
	Severity   string  `json:"severity"`
	File       string  `json:"file"`
	Line       LineRef `json:"line"`
	Issue      string  `json:"issue"`
	Suggestion string  `json:"suggestion"`
	CodeFix    string  `json:"code_fix"`
}

// ExplanationResult is the structured output of the explainer
type ExplanationResult struct {
	Explanation   string       `json:"explanation"`
	LearningSteps []string     `json:"learning_steps"`
	KeyConcepts   []KeyConcept `json:"key_concepts"`
	Analogy       string       `json:"analogy"`
}

// KeyConcept is a term and its definition
type KeyConcept struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// LineRef is a line number that models sometimes emit as a string
type LineRef int

// UnmarshalJSON accepts 12, "12", "L12" and null
func (l *LineRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*l = LineRef(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "L")
	if s == "" {
		*l = 0
		return nil
	}
	// "12-15" refers to the first line of a range
	if i := strings.IndexAny(s, "-,: "); i > 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*l = LineRef(n)
	return nil
}

// normalize fills empty collections and clamps values to the documented ranges
func (r *ReviewResult) normalize() {
	if r.Findings == nil {
		r.Findings = []Finding{}
	}
	for i := range r.Findings {
		r.Findings[i].Severity = normalizeSeverity(r.Findings[i].Severity)
	}
	if r.QualityScore < 1 {
		r.QualityScore = 1
	}
	if r.QualityScore > 10 {
		r.QualityScore = 10
	}
	r.SecurityRisk = normalizeRisk(r.SecurityRisk)
}

func normalizeSeverity(s string) string {
	switch up := strings.ToUpper(strings.TrimSpace(s)); up {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return up
	default:
		return SeverityLow
	}
}

func normalizeRisk(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical":
		return RiskHigh
	case "low", "medium":
		return RiskLow
	default:
		return RiskNone
	}
}

func (r *ExplanationResult) normalize() {
	if r.LearningSteps == nil {
		r.LearningSteps = []string{}
	}
	if r.KeyConcepts == nil {
		r.KeyConcepts = []KeyConcept{}
	}
}
