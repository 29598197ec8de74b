package normalize

import "github.com/fixpal/backend/internal/knowledge"

// categoryKeywords maps symptom vocabulary to repair categories. A query can
// pick up multiple hints; detection is not mutually exclusive.
var categoryKeywords = map[string]knowledge.Category{
	// plumbing
	"leak":    knowledge.CategoryPlumbing,
	"leaking": knowledge.CategoryPlumbing,
	"faucet":  knowledge.CategoryPlumbing,
	"pipe":    knowledge.CategoryPlumbing,
	"drain":   knowledge.CategoryPlumbing,
	"toilet":  knowledge.CategoryPlumbing,
	"sink":    knowledge.CategoryPlumbing,
	"shower":  knowledge.CategoryPlumbing,
	"sewer":   knowledge.CategoryPlumbing,

	// electrical
	"breaker":  knowledge.CategoryElectrical,
	"outlet":   knowledge.CategoryElectrical,
	"wiring":   knowledge.CategoryElectrical,
	"wire":     knowledge.CategoryElectrical,
	"switch":   knowledge.CategoryElectrical,
	"gfci":     knowledge.CategoryElectrical,
	"voltage":  knowledge.CategoryElectrical,
	"circuit":  knowledge.CategoryElectrical,
	"tripping": knowledge.CategoryElectrical,

	// hvac
	"grinding":    knowledge.CategoryHVAC,
	"condenser":   knowledge.CategoryHVAC,
	"furnace":     knowledge.CategoryHVAC,
	"thermostat":  knowledge.CategoryHVAC,
	"hvac":        knowledge.CategoryHVAC,
	"refrigerant": knowledge.CategoryHVAC,
	"duct":        knowledge.CategoryHVAC,
	"compressor":  knowledge.CategoryHVAC,

	// appliance
	"dishwasher":   knowledge.CategoryAppliance,
	"motor":        knowledge.CategoryAppliance,
	"washer":       knowledge.CategoryAppliance,
	"dryer":        knowledge.CategoryAppliance,
	"refrigerator": knowledge.CategoryAppliance,
	"oven":         knowledge.CategoryAppliance,
	"microwave":    knowledge.CategoryAppliance,

	// carpentry
	"door":    knowledge.CategoryCarpentry,
	"cabinet": knowledge.CategoryCarpentry,
	"hinge":   knowledge.CategoryCarpentry,
	"floor":   knowledge.CategoryCarpentry,
	"trim":    knowledge.CategoryCarpentry,
	"window":  knowledge.CategoryCarpentry,
}

// stopWords are dropped during tokenization. Kept deliberately small so
// symptom vocabulary survives.
var stopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"has", "have", "how", "i", "in", "is", "it", "its", "my", "of", "on",
	"or", "our", "so", "that", "the", "their", "them", "then", "there",
	"these", "they", "this", "to", "was", "we", "were", "what", "when",
	"where", "which", "while", "why", "will", "with", "you", "your",
}
