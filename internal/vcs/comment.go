package vcs

import (
	"fmt"
	"strings"

	"codesherpa/internal/agents"
)

var severityIcons = map[string]string{
	agents.SeverityCritical: "🔴",
	agents.SeverityHigh:     "🟠",
	agents.SeverityMedium:   "🟡",
	agents.SeverityLow:      "🔵",
}

// RenderComment formats a review as a GitHub markdown comment
func RenderComment(title string, review *agents.ReviewResult) string {
	var b strings.Builder

	b.WriteString("## 🧘 Review Monk\n\n")
	if title != "" {
		fmt.Fprintf(&b, "_%s_\n\n", title)
	}
	fmt.Fprintf(&b, "**Quality score:** %d/10 | **Security risk:** %s\n\n", review.QualityScore, review.SecurityRisk)

	if summary := strings.TrimSpace(review.Summary); summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	if len(review.Findings) == 0 {
		b.WriteString("No issues found. 🙏\n")
		return b.String()
	}

	fmt.Fprintf(&b, "### Findings (%d)\n\n", len(review.Findings))
	for i, f := range review.Findings {
		icon := severityIcons[f.Severity]
		fmt.Fprintf(&b, "%d. %s **%s** %s", i+1, icon, f.Severity, location(f))
		b.WriteString("\n")
		if f.Issue != "" {
			fmt.Fprintf(&b, "   %s\n", f.Issue)
		}
		if f.Suggestion != "" {
			fmt.Fprintf(&b, "   > 💡 %s\n", f.Suggestion)
		}
		if fix := strings.TrimSpace(f.CodeFix); fix != "" {
			b.WriteString("\n   ```\n")
			for _, line := range strings.Split(fix, "\n") {
				b.WriteString("   ")
				b.WriteString(line)
				b.WriteString("\n")
			}
			b.WriteString("   ```\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func location(f agents.Finding) string {
	switch {
	case f.File == "":
		return ""
	case f.Line > 0:
		return fmt.Sprintf("`%s:%d`", f.File, f.Line)
	default:
		return fmt.Sprintf("`%s`", f.File)
	}
}
