package knowledge

import "strings"

// minStemLen guards the substring relation: the shorter side must carry at
// least this many runes, so "leak" matches "leaking" but "ac" does not match
// "crack".
const minStemLen = 4

// TermMatches reports whether an entry keyword matches a query term, by exact
// equality or stem-insensitive substring containment in either direction.
func TermMatches(keyword, term string) bool {
	if keyword == term {
		return true
	}
	shorter := keyword
	if len(term) < len(shorter) {
		shorter = term
	}
	if len([]rune(shorter)) < minStemLen {
		return false
	}
	return strings.Contains(term, keyword) || strings.Contains(keyword, term)
}

// MatchesAnyTerm reports whether any of the entry's keywords matches any query
// term. Multi-word keywords are matched against the cleaned query text.
func (e *Entry) MatchesAnyTerm(terms []string, cleanedText string) bool {
	for _, kw := range e.Keywords {
		if strings.ContainsRune(kw.Term, ' ') {
			if cleanedText != "" && strings.Contains(cleanedText, kw.Term) {
				return true
			}
			continue
		}
		for _, t := range terms {
			if TermMatches(kw.Term, t) {
				return true
			}
		}
	}
	return false
}
