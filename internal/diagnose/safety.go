package diagnose

import (
	"strings"

	"github.com/fixpal/backend/internal/knowledge"
)

// criticalKeywords flags repair work that warrants an escalated safety
// annotation and a professional-help recommendation.
var criticalKeywords = map[knowledge.Category][]string{
	knowledge.CategoryElectrical: {
		"live wire", "high voltage", "electrical panel", "220v", "240v",
	},
	knowledge.CategoryPlumbing: {
		"gas line", "main water line", "sewer", "asbestos", "lead pipe",
	},
	knowledge.CategoryHVAC: {
		"gas line", "refrigerant", "carbon monoxide", "furnace",
	},
	knowledge.CategoryCarpentry: {
		"load-bearing", "structural", "asbestos", "foundation",
	},
	knowledge.CategoryAppliance: {
		"gas line", "capacitor", "high voltage",
	},
}

const professionalAdvice = "This work may require a licensed professional. Consider consulting an expert before proceeding."

// safetyReview scans an entry's plan text for critical work in its category.
// It returns the (possibly escalated) safety level and warning. Escalation is
// one-way: a level is never downgraded and the stored warning text is kept.
func safetyReview(e *knowledge.Entry) (knowledge.SafetyLevel, string) {
	level := e.SafetyLevel
	warning := e.SafetyWarning

	keywords, ok := criticalKeywords[e.Category]
	if !ok {
		return level, warning
	}

	var text strings.Builder
	text.WriteString(strings.ToLower(e.SafetyWarning))
	for _, step := range e.Steps {
		text.WriteByte(' ')
		text.WriteString(strings.ToLower(step))
	}
	haystack := text.String()

	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			continue
		}
		level = level.AtLeast(knowledge.SafetyCaution)
		if !strings.Contains(warning, professionalAdvice) {
			if warning != "" {
				warning += " "
			}
			warning += professionalAdvice
		}
		break
	}

	return level, warning
}
