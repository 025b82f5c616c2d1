package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderName(t *testing.T) {
	tests := []struct {
		provider Provider
		want     string
	}{
		{ProviderUnspecified, "UNSPECIFIED"},
		{ProviderAWS, "AWS"},
		{ProviderAzure, "AZURE"},
		{ProviderGCP, "GCP"},
		{Provider(9), "Unknown Provider"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.provider.Name())
	}
}

func TestRiskClassDecoding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RiskClass
	}{
		{"number", `3`, "3"},
		{"zero means none", `0`, ""},
		{"string", `"Security"`, "Security"},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec struct {
				Class RiskClass `json:"class"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"class":`+tt.raw+`}`), &rec))
			assert.Equal(t, tt.want, rec.Class)
		})
	}
}

func TestRiskClassRejectsGarbage(t *testing.T) {
	var c RiskClass
	assert.Error(t, c.UnmarshalJSON([]byte(`{}`)))
}

func TestPageDecoding(t *testing.T) {
	body := `{
		"data": [{"recommendationId": "r1", "title": "Open bucket", "provider": [1], "class": 2,
			"reasons": ["exposed"], "frameworks": [{"name": "CIS", "section": "1", "subsection": "1.2"}],
			"impactAssessment": {"totalViolations": 4, "mostImpactedScope": {"name": "prod", "count": 3}}}],
		"pagination": {"cursor": {"next": "abc"}, "totalItems": 25},
		"availableTags": {"providers": ["GCP", "AWS"], "reasons": ["b", "a"]}
	}`

	var page Page
	require.NoError(t, json.Unmarshal([]byte(body), &page))

	require.Len(t, page.Data, 1)
	rec := page.Data[0]
	assert.Equal(t, "r1", rec.RecommendationID)
	assert.Equal(t, []Provider{ProviderAWS}, rec.Provider)
	assert.Equal(t, RiskClass("2"), rec.Class)
	assert.Equal(t, 4, rec.ImpactAssessment.TotalViolations)
	assert.Equal(t, "abc", page.NextCursor())
	assert.Equal(t, 25, page.Pagination.TotalItems)

	sorted := page.AvailableTags.Sorted()
	assert.Equal(t, []string{"AWS", "GCP"}, sorted.Providers)
	assert.Equal(t, []string{"a", "b"}, sorted.Reasons)
	assert.Equal(t, []string{"GCP", "AWS"}, page.AvailableTags.Providers)
}

func TestPageNextCursorNull(t *testing.T) {
	var page Page
	require.NoError(t, json.Unmarshal([]byte(`{"data":[],"pagination":{"cursor":{"next":null},"totalItems":0}}`), &page))
	assert.Empty(t, page.NextCursor())
}
