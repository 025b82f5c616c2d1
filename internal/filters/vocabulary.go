package filters

import (
	"strings"

	"github.com/aws-agent/console/internal/storage/models"
)

// Vocabulary lists the tags found across the records matching a search term,
// with the number of records carrying each tag.
type Vocabulary struct {
	Providers   []string       `json:"providers"`
	Frameworks  []string       `json:"frameworks"`
	RiskClasses []string       `json:"riskClasses"`
	Reasons     []string       `json:"reasons"`
	TagCounts   map[string]int `json:"tagCounts"`
}

func emptyVocabulary() Vocabulary {
	return Vocabulary{
		Providers:   []string{},
		Frameworks:  []string{},
		RiskClasses: []string{},
		Reasons:     []string{},
		TagCounts:   map[string]int{},
	}
}

// Aggregate builds the vocabulary in one pass. A tag repeated within one record counts once.
func Aggregate(records []models.Recommendation) Vocabulary {
	v := emptyVocabulary()
	seen := map[Dimension]map[string]bool{
		DimensionProvider:  {},
		DimensionFramework: {},
		DimensionRiskClass: {},
		DimensionReason:    {},
	}

	for _, rec := range records {
		counted := make(map[string]bool)
		add := func(dim Dimension, name string) {
			if name == "" {
				return
			}
			if !seen[dim][name] {
				seen[dim][name] = true
				switch dim {
				case DimensionProvider:
					v.Providers = append(v.Providers, name)
				case DimensionFramework:
					v.Frameworks = append(v.Frameworks, name)
				case DimensionRiskClass:
					v.RiskClasses = append(v.RiskClasses, name)
				case DimensionReason:
					v.Reasons = append(v.Reasons, name)
				}
			}
			if !counted[name] {
				counted[name] = true
				v.TagCounts[name]++
			}
		}

		for _, p := range rec.Provider {
			add(DimensionProvider, p.Name())
		}
		for _, fw := range rec.Frameworks {
			add(DimensionFramework, fw.Name)
		}
		add(DimensionRiskClass, rec.Class.Label())
		for _, reason := range rec.Reasons {
			add(DimensionReason, reason)
		}
	}

	return v
}

// Filter keeps the tags containing term, case-insensitively. Counts are left untouched.
func (v Vocabulary) Filter(term string) Vocabulary {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return v
	}
	return Vocabulary{
		Providers:   matching(v.Providers, term),
		Frameworks:  matching(v.Frameworks, term),
		RiskClasses: matching(v.RiskClasses, term),
		Reasons:     matching(v.Reasons, term),
		TagCounts:   v.TagCounts,
	}
}

func (v Vocabulary) Len() int {
	return len(v.Providers) + len(v.Frameworks) + len(v.RiskClasses) + len(v.Reasons)
}

func matching(items []string, lowerTerm string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item), lowerTerm) {
			out = append(out, item)
		}
	}
	return out
}
