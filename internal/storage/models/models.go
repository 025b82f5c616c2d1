package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Provider int

const (
	ProviderUnspecified Provider = 0
	ProviderAWS         Provider = 1
	ProviderAzure       Provider = 2
	ProviderGCP         Provider = 3
)

// Name is the display name used as a filter tag.
func (p Provider) Name() string {
	switch p {
	case ProviderUnspecified:
		return "UNSPECIFIED"
	case ProviderAWS:
		return "AWS"
	case ProviderAzure:
		return "AZURE"
	case ProviderGCP:
		return "GCP"
	default:
		return "Unknown Provider"
	}
}

// RiskClass accepts either a JSON number or a JSON string. The zero value means no class.
type RiskClass string

func (c *RiskClass) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*c = ""
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode risk class: %w", err)
		}
		*c = RiskClass(s)
		return nil
	}

	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("failed to decode risk class %q: %w", trimmed, err)
	}
	if n == 0 {
		*c = ""
		return nil
	}
	*c = RiskClass(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}

func (c RiskClass) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(string(c), 64); err == nil {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

// Label is the tag form of the class; empty when the record has none.
func (c RiskClass) Label() string {
	return string(c)
}

type Framework struct {
	Name       string `json:"name"`
	Section    string `json:"section,omitempty"`
	Subsection string `json:"subsection,omitempty"`
}

type MostImpactedScope struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Count int    `json:"count"`
}

type ImpactAssessment struct {
	TotalViolations   int                `json:"totalViolations"`
	MostImpactedScope *MostImpactedScope `json:"mostImpactedScope,omitempty"`
}

type Status string

const (
	StatusOpen     Status = "Open"
	StatusResolved Status = "Resolved"
	StatusArchived Status = "Archived"
)

type Recommendation struct {
	RecommendationID string            `json:"recommendationId"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Score            float64           `json:"score"`
	Provider         []Provider        `json:"provider"`
	Class            RiskClass         `json:"class"`
	Reasons          []string          `json:"reasons,omitempty"`
	Frameworks       []Framework       `json:"frameworks,omitempty"`
	ImpactAssessment *ImpactAssessment `json:"impactAssessment,omitempty"`
	Status           Status            `json:"status,omitempty"`
	Severity         string            `json:"severity,omitempty"`
	LastUpdated      string            `json:"lastUpdated,omitempty"`
}

type AvailableTags struct {
	Providers  []string `json:"providers,omitempty"`
	Frameworks []string `json:"frameworks,omitempty"`
	Classes    []string `json:"classes,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Sorted returns a copy with every dimension sorted alphabetically.
func (t *AvailableTags) Sorted() *AvailableTags {
	if t == nil {
		return nil
	}
	return &AvailableTags{
		Providers:  sortedCopy(t.Providers),
		Frameworks: sortedCopy(t.Frameworks),
		Classes:    sortedCopy(t.Classes),
		Reasons:    sortedCopy(t.Reasons),
	}
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

type Cursor struct {
	Next *string `json:"next"`
}

type Pagination struct {
	Cursor     Cursor `json:"cursor"`
	TotalItems int    `json:"totalItems"`
}

// Page is the list endpoint envelope.
type Page struct {
	Data          []Recommendation `json:"data"`
	Pagination    Pagination       `json:"pagination"`
	AvailableTags *AvailableTags   `json:"availableTags,omitempty"`
}

// NextCursor returns the next cursor, or "" when the list is exhausted.
func (p *Page) NextCursor() string {
	if p == nil || p.Pagination.Cursor.Next == nil {
		return ""
	}
	return *p.Pagination.Cursor.Next
}

type MutationResult struct {
	Message        string          `json:"message"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// Session is the persisted login of the dashboard user.
type Session struct {
	Username  string    `json:"username"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// MutationRecord is one settled archive or unarchive call.
type MutationRecord struct {
	ID               string    `json:"id"`
	RecommendationID string    `json:"recommendationId"`
	Action           string    `json:"action"`
	Success          bool      `json:"success"`
	Message          string    `json:"message,omitempty"`
	LatencyMS        int64     `json:"latencyMs"`
	CreatedAt        time.Time `json:"createdAt"`
}
