package filters

import (
	"fmt"

	"github.com/aws-agent/console/internal/query"
)

type Dimension string

const (
	DimensionProvider  Dimension = "provider"
	DimensionFramework Dimension = "framework"
	DimensionRiskClass Dimension = "riskClass"
	DimensionReason    Dimension = "reason"
)

func ParseDimension(s string) (Dimension, error) {
	switch Dimension(s) {
	case DimensionProvider, DimensionFramework, DimensionRiskClass, DimensionReason:
		return Dimension(s), nil
	default:
		return "", fmt.Errorf("unknown filter dimension %q", s)
	}
}

// tagSet keeps insertion order so dropdown chips do not jump around.
type tagSet struct {
	order []string
}

func (s *tagSet) toggle(name string) bool {
	for i, v := range s.order {
		if v == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			return false
		}
	}
	s.order = append(s.order, name)
	return true
}

func (s *tagSet) values() []string {
	return append([]string{}, s.order...)
}

func (s *tagSet) len() int {
	return len(s.order)
}

func (s *tagSet) clear() {
	s.order = nil
}

// Selection is a point-in-time copy of the user's filters.
type Selection struct {
	SearchTerm       string   `json:"searchTerm"`
	FilterSearchTerm string   `json:"filterSearchTerm"`
	Providers        []string `json:"providers"`
	Frameworks       []string `json:"frameworks"`
	RiskClasses      []string `json:"riskClasses"`
	Reasons          []string `json:"reasons"`
}

func (s Selection) ActiveFilterCount() int {
	return len(s.Providers) + len(s.Frameworks) + len(s.RiskClasses) + len(s.Reasons)
}

// Tags flattens the four dimensions into the single list sent to the backend.
func (s Selection) Tags() []string {
	tags := make([]string, 0, s.ActiveFilterCount())
	tags = append(tags, s.Providers...)
	tags = append(tags, s.Frameworks...)
	tags = append(tags, s.RiskClasses...)
	tags = append(tags, s.Reasons...)
	return tags
}

// ListKey is the cache key of the list under root for this selection.
func (s Selection) ListKey(root string) query.Key {
	return query.ListKey(root, s.SearchTerm, s.Providers, s.Frameworks, s.RiskClasses, s.Reasons)
}
