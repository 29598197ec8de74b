package diagnose

import "github.com/fixpal/backend/internal/knowledge"

// maxSuggestedCategories bounds the unresolved-result suggestion list.
const maxSuggestedCategories = 3

// Result is the immutable outcome of one diagnosis. Either Resolved with a
// full repair plan, or unresolved with suggested categories to narrow the
// next request.
type Result struct {
	Resolved            bool
	EntryID             string
	Confidence          int
	Severity            knowledge.Severity
	SafetyLevel         knowledge.SafetyLevel
	SafetyWarning       string
	EstimatedMinutes    int
	Steps               []string
	Tools               []string
	Parts               []knowledge.Part
	MatchedTerms        []string
	SuggestedCategories []knowledge.Category
}

// Assembler converts a ranked result set into a Result. Pure transformation;
// stored step order is authoritative and assumed already safety-sequenced.
type Assembler struct{}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble builds the diagnosis result from the ranked matches. An empty set
// or a below-threshold top match yields the unresolved variant.
func (a *Assembler) Assemble(ranked []RankedMatch) Result {
	if len(ranked) == 0 {
		return Result{}
	}

	top := ranked[0]
	if top.BelowThreshold {
		return Result{
			SuggestedCategories: suggestCategories(ranked),
		}
	}

	entry := top.Entry
	level, warning := safetyReview(entry)

	steps := make([]string, len(entry.Steps))
	copy(steps, entry.Steps)

	return Result{
		Resolved:         true,
		EntryID:          entry.ID,
		Confidence:       top.Confidence,
		Severity:         entry.Severity,
		SafetyLevel:      level,
		SafetyWarning:    warning,
		EstimatedMinutes: entry.EstimatedMinutes,
		Steps:            steps,
		Tools:            entry.Tools,
		Parts:            entry.Parts,
		MatchedTerms:     top.MatchedTerms,
	}
}

// suggestCategories collects the categories of the up to three
// highest-scoring candidates, deduplicated, preserving rank order.
func suggestCategories(ranked []RankedMatch) []knowledge.Category {
	if len(ranked) > maxSuggestedCategories {
		ranked = ranked[:maxSuggestedCategories]
	}
	var out []knowledge.Category
	seen := make(map[knowledge.Category]struct{})
	for _, m := range ranked {
		cat := m.Entry.Category
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}
