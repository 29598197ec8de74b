package knowledge

import (
	"fmt"
	"time"
)

// Keyword is one symptom term (or phrase) with its contribution weight.
type Keyword struct {
	Term   string
	Weight float64
}

// Part is a replacement part with its expected price range in dollars.
type Part struct {
	Name      string
	PriceLow  float64
	PriceHigh float64
}

// Entry is one repair-procedure record. Entries are immutable once published
// to an index snapshot; updates go through the store and a snapshot reload.
type Entry struct {
	ID               string
	Category         Category
	Keywords         []Keyword
	Severity         Severity
	SafetyLevel      SafetyLevel
	SafetyWarning    string
	EstimatedMinutes int
	Steps            []string
	Tools            []string
	Parts            []Part
	UpdatedAt        time.Time
}

// Validate enforces the entry invariants: unique non-empty ID (uniqueness is
// checked at index build), a valid category, at least one step, and at least
// one positively-weighted keyword.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry missing id")
	}
	if !e.Category.Valid() {
		return fmt.Errorf("entry %s: invalid category %q", e.ID, e.Category)
	}
	if len(e.Steps) == 0 {
		return fmt.Errorf("entry %s: at least one step required", e.ID)
	}
	if len(e.Keywords) == 0 {
		return fmt.Errorf("entry %s: at least one symptom keyword required", e.ID)
	}
	for _, kw := range e.Keywords {
		if kw.Term == "" || kw.Weight <= 0 {
			return fmt.Errorf("entry %s: keyword %q must have a positive weight", e.ID, kw.Term)
		}
	}
	return nil
}

// TotalKeywordWeight is the normalization denominator for term-overlap scoring.
func (e *Entry) TotalKeywordWeight() float64 {
	var total float64
	for _, kw := range e.Keywords {
		total += kw.Weight
	}
	return total
}
