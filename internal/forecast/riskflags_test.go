package forecast

import (
	"testing"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRiskScore(t *testing.T) {
	tests := []struct {
		name  string
		score *int
		want  bool
	}{
		{"Absent is risk", nil, true},
		{"Zero is risk", intPtr(0), true},
		{"Weak is risk", intPtr(1), true},
		{"Two is acceptable", intPtr(2), false},
		{"Three is acceptable", intPtr(3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRiskScore(tt.score))
		})
	}
}

func TestExtractRiskFlags(t *testing.T) {
	deal := &models.Deal{
		Categories: []models.CategoryScore{
			{Key: "metrics", Score: intPtr(0), CoachingTip: "Quantify the business case"},
			{Key: "champion", Score: intPtr(3)},
			{Key: "timing", Score: nil, CoachingTip: "Confirm the decision date"},
			{Key: "budget", Score: intPtr(1), CoachingTip: "Quantify the business case"}, // duplicate tip
		},
	}
	labels := models.BuildScoreLabelMap([]models.ScoreLabel{
		{OrgID: "org-1", CategoryKey: "metrics", Score: 0, Label: "Not established"},
	})

	flags, insights := ExtractRiskFlags(deal, labels, false)

	require.Len(t, flags, 3)
	assert.Equal(t, "metrics", flags[0].CategoryKey)
	assert.Equal(t, "Not established", flags[0].Label)
	assert.Equal(t, "timing", flags[1].CategoryKey)
	assert.Equal(t, "unscored", flags[1].Label)
	assert.Equal(t, "budget", flags[2].CategoryKey)
	assert.Equal(t, "score 1", flags[2].Label) // no label configured, generic fallback

	// De-duplicated, order preserved, non-empty only.
	assert.Equal(t, []string{"Quantify the business case", "Confirm the decision date"}, insights)
}

func TestExtractRiskFlags_SuppressedFlag(t *testing.T) {
	deal := &models.Deal{
		Categories: []models.CategoryScore{
			{Key: "pain", Score: intPtr(3)},
		},
	}

	flags, insights := ExtractRiskFlags(deal, models.ScoreLabelMap{}, true)

	require.Len(t, flags, 1)
	assert.Equal(t, SuppressedFlagKey, flags[0].CategoryKey)
	assert.Equal(t, "Suppressed", flags[0].Label)
	assert.True(t, flags[0].Synthetic)
	assert.Empty(t, insights)
}

func TestExtractRiskFlags_HealthyDealNoFlags(t *testing.T) {
	deal := &models.Deal{
		Categories: []models.CategoryScore{
			{Key: "metrics", Score: intPtr(2)},
			{Key: "pain", Score: intPtr(3)},
		},
	}

	flags, insights := ExtractRiskFlags(deal, models.ScoreLabelMap{}, false)
	assert.Empty(t, flags)
	assert.Empty(t, insights)
}

func TestHasRiskCategory(t *testing.T) {
	deal := &models.Deal{
		Categories: []models.CategoryScore{
			{Key: "metrics", Score: intPtr(0)},
			{Key: "pain", Score: intPtr(3)},
		},
	}

	assert.True(t, HasRiskCategory(deal, "metrics"))
	assert.False(t, HasRiskCategory(deal, "pain"))
	// Never recorded at all counts as unscored.
	assert.True(t, HasRiskCategory(deal, "budget"))
}
