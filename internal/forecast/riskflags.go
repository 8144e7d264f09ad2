package forecast

import (
	"fmt"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// SuppressedFlagKey is the synthetic flag emitted when the resolved health
// rule suppresses the deal.
const SuppressedFlagKey = "suppressed"

// isRiskScore reports whether a category score signals risk. Absent and
// weak (0 = not established, 1 = weak) scores are risk; 2 and 3 are
// acceptable.
func isRiskScore(score *int) bool {
	return score == nil || *score <= 1
}

// flagLabel resolves the display label for a risky category score. Falls
// back to generic "score N" / "unscored" text when the org has no label
// configured.
func flagLabel(labels models.ScoreLabelMap, key string, score *int) string {
	if score == nil {
		return "unscored"
	}
	if label := labels.Lookup(key, *score); label != "" {
		return label
	}
	return fmt.Sprintf("score %d", *score)
}

// ExtractRiskFlags emits a flag per risky MEDDPICC+TB category plus a
// synthetic Suppressed flag when the resolved rule suppressed the deal.
// Coaching insights are the de-duplicated, order-preserving, non-empty tips
// across all triggered flags.
func ExtractRiskFlags(deal *models.Deal, labels models.ScoreLabelMap, suppressed bool) ([]models.RiskFlag, []string) {
	var flags []models.RiskFlag

	for _, cat := range deal.Categories {
		if !isRiskScore(cat.Score) {
			continue
		}
		flags = append(flags, models.RiskFlag{
			CategoryKey: cat.Key,
			Label:       flagLabel(labels, cat.Key, cat.Score),
			CoachingTip: cat.CoachingTip,
		})
	}

	if suppressed {
		flags = append(flags, models.RiskFlag{
			CategoryKey: SuppressedFlagKey,
			Label:       "Suppressed",
			Synthetic:   true,
		})
	}

	seen := make(map[string]bool, len(flags))
	var insights []string
	for _, f := range flags {
		if f.CoachingTip == "" || seen[f.CoachingTip] {
			continue
		}
		seen[f.CoachingTip] = true
		insights = append(insights, f.CoachingTip)
	}

	return flags, insights
}

// HasRiskCategory reports whether the named category is risky on the deal
func HasRiskCategory(deal *models.Deal, categoryKey string) bool {
	for _, cat := range deal.Categories {
		if cat.Key == categoryKey {
			return isRiskScore(cat.Score)
		}
	}
	// A category missing from the record entirely was never scored.
	return true
}
