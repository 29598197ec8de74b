package diagnose

import (
	"math"
	"sort"
	"strings"

	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/internal/normalize"
)

// RankedMatch pairs a candidate entry with its scored confidence.
type RankedMatch struct {
	Entry          *knowledge.Entry
	Confidence     int
	MatchedTerms   []string
	BelowThreshold bool
}

// RankerConfig carries the tunable scoring knobs.
type RankerConfig struct {
	// ConfidenceThreshold is the minimum confidence a top match needs to be
	// presented as a resolved diagnosis.
	ConfidenceThreshold int
	// CategoryBoost multiplies the term-overlap score when the entry's
	// category appears in the query hints. Clamped to 1.0 after applying.
	CategoryBoost float64
	// CategoryOnlyScore is the flat confidence assigned when term overlap is
	// zero but a supplied category hint matches the entry.
	CategoryOnlyScore int
}

func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		ConfidenceThreshold: 40,
		CategoryBoost:       1.25,
		CategoryOnlyScore:   25,
	}
}

type Ranker struct {
	cfg RankerConfig
}

func NewRanker(cfg RankerConfig) *Ranker {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 40
	}
	if cfg.CategoryBoost <= 1 {
		cfg.CategoryBoost = 1.25
	}
	if cfg.CategoryOnlyScore < 0 {
		cfg.CategoryOnlyScore = 25
	}
	return &Ranker{cfg: cfg}
}

// Rank scores every candidate against the query and returns a totally ordered
// result set: confidence descending, then last-updated descending, then ID
// ascending. Below-threshold matches stay in the list, flagged.
func (r *Ranker) Rank(q normalize.Query, candidates []*knowledge.Entry) []RankedMatch {
	if len(candidates) == 0 {
		return nil
	}

	hints := make(map[knowledge.Category]struct{}, len(q.CategoryHints))
	for _, h := range q.CategoryHints {
		hints[h] = struct{}{}
	}

	matches := make([]RankedMatch, 0, len(candidates))
	for _, e := range candidates {
		overlap, matched := r.overlapScore(q, e)

		score := overlap
		_, categoryMatch := hints[e.Category]
		if categoryMatch && overlap > 0 {
			score = math.Min(overlap*r.cfg.CategoryBoost, 1.0)
		}

		confidence := int(math.Round(score * 100))
		if categoryMatch && confidence < r.cfg.CategoryOnlyScore {
			// The category hint alone is worth a floor confidence, so adding
			// term evidence can only raise a score, never lower it.
			confidence = r.cfg.CategoryOnlyScore
		}

		matches = append(matches, RankedMatch{
			Entry:          e,
			Confidence:     confidence,
			MatchedTerms:   matched,
			BelowThreshold: confidence < r.cfg.ConfidenceThreshold,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.Entry.UpdatedAt.Equal(b.Entry.UpdatedAt) {
			return a.Entry.UpdatedAt.After(b.Entry.UpdatedAt)
		}
		return a.Entry.ID < b.Entry.ID
	})

	return matches
}

// Threshold exposes the configured confidence threshold for the assembler.
func (r *Ranker) Threshold() int {
	return r.cfg.ConfidenceThreshold
}

// overlapScore computes the weight-normalized term overlap in [0,1] along
// with the matched keyword terms.
func (r *Ranker) overlapScore(q normalize.Query, e *knowledge.Entry) (float64, []string) {
	total := e.TotalKeywordWeight()
	if total <= 0 {
		return 0, nil
	}

	var sum float64
	var matched []string
	for _, kw := range e.Keywords {
		if r.keywordHits(kw.Term, q) {
			sum += kw.Weight
			matched = append(matched, kw.Term)
		}
	}
	return sum / total, matched
}

func (r *Ranker) keywordHits(keyword string, q normalize.Query) bool {
	if strings.ContainsRune(keyword, ' ') {
		return q.Text != "" && strings.Contains(q.Text, keyword)
	}
	for _, t := range q.Terms {
		if knowledge.TermMatches(keyword, t) {
			return true
		}
	}
	return false
}
