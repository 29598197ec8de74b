package normalize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"

	"github.com/fixpal/backend/internal/knowledge"
)

// ErrValidation marks a request carrying no signal at all: blank text, no
// image evidence, no category hint. Surfaced to the caller immediately, no
// retry.
var ErrValidation = errors.New("request carries no signal")

// Query is the canonical form of one diagnosis request. Ephemeral; never
// persisted as-is.
type Query struct {
	Text             string
	Terms            []string
	CategoryHints    []knowledge.Category
	HasImageEvidence bool
	ImageDescriptor  string
}

// Normalizer turns a raw request into a Query. Pure: no side effects, same
// inputs always yield the same query.
type Normalizer struct {
	stopWords map[string]struct{}
}

func New() *Normalizer {
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[w] = struct{}{}
	}
	return &Normalizer{stopWords: stop}
}

// Normalize validates, cleans, tokenizes, and tags the request. hint may be
// nil. The returned hints contain the explicit hint (if any) first, then
// categories detected from the text, deduplicated.
func (n *Normalizer) Normalize(rawText string, hint *knowledge.Category, hasImage bool, imageDescriptor string) (Query, error) {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" && !hasImage && hint == nil {
		return Query{}, fmt.Errorf("%w: empty text, no image evidence, no category hint", ErrValidation)
	}

	terms := n.tokenize(trimmed)

	q := Query{
		Text:             strings.Join(terms, " "),
		Terms:            terms,
		HasImageEvidence: hasImage,
		ImageDescriptor:  imageDescriptor,
	}

	if hint != nil {
		q.CategoryHints = append(q.CategoryHints, *hint)
	}
	for _, cat := range DetectCategories(terms) {
		if !containsCategory(q.CategoryHints, cat) {
			q.CategoryHints = append(q.CategoryHints, cat)
		}
	}

	return q, nil
}

// Tokens exposes the cleaned term sequence for a piece of text, in input
// order, stop words removed.
func (n *Normalizer) Tokens(text string) []string {
	return n.tokenize(strings.TrimSpace(text))
}

// DetectCategories scans terms against the static keyword table. Multiple
// categories may be detected; all are returned, deduplicated, in term order.
func DetectCategories(terms []string) []knowledge.Category {
	var out []knowledge.Category
	for _, t := range terms {
		cat, ok := categoryKeywords[t]
		if !ok {
			continue
		}
		if !containsCategory(out, cat) {
			out = append(out, cat)
		}
	}
	return out
}

func containsCategory(cats []knowledge.Category, c knowledge.Category) bool {
	for _, have := range cats {
		if have == c {
			return true
		}
	}
	return false
}

// tokenize lowercases and splits the text into word terms, dropping
// punctuation and stop words. Tokenization uses prose with tagging,
// extraction, and sentence segmentation disabled.
func (n *Normalizer) tokenize(text string) []string {
	if text == "" {
		return nil
	}

	doc, err := prose.NewDocument(
		strings.ToLower(text),
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		// Tokenizer failure degrades to whitespace splitting.
		return n.fallbackTokens(text)
	}

	var terms []string
	for _, tok := range doc.Tokens() {
		term := strings.TrimFunc(tok.Text, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if term == "" {
			continue
		}
		if _, stop := n.stopWords[term]; stop {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

func (n *Normalizer) fallbackTokens(text string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(text)) {
		term := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if term == "" {
			continue
		}
		if _, stop := n.stopWords[term]; stop {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}
