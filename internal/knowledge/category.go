package knowledge

import "fmt"

// Category is the closed set of repair domains. Hints and entry tags are
// validated against it so category handling stays exhaustive instead of
// ad-hoc string matching.
type Category string

const (
	CategoryPlumbing   Category = "plumbing"
	CategoryHVAC       Category = "hvac"
	CategoryElectrical Category = "electrical"
	CategoryAppliance  Category = "appliance"
	CategoryCarpentry  Category = "carpentry"
)

// Categories returns all valid categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryPlumbing,
		CategoryHVAC,
		CategoryElectrical,
		CategoryAppliance,
		CategoryCarpentry,
	}
}

// ParseCategory validates a raw tag against the closed set.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	switch c {
	case CategoryPlumbing, CategoryHVAC, CategoryElectrical, CategoryAppliance, CategoryCarpentry:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", raw)
}

func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SafetyLevel annotates how hazardous a repair is. Levels are ordered;
// plan assembly may escalate but never downgrade.
type SafetyLevel string

const (
	SafetyNone    SafetyLevel = "none"
	SafetyCaution SafetyLevel = "caution"
	SafetyDanger  SafetyLevel = "danger"
)

func (s SafetyLevel) rank() int {
	switch s {
	case SafetyCaution:
		return 1
	case SafetyDanger:
		return 2
	default:
		return 0
	}
}

// AtLeast returns the stricter of the two levels.
func (s SafetyLevel) AtLeast(other SafetyLevel) SafetyLevel {
	if other.rank() > s.rank() {
		return other
	}
	return s
}
