package forecast

import (
	"github.com/pipehealth/pipehealth-go/internal/models"
)

// MaxProbabilityModifier is the upper bound a stored modifier is clamped to
// at write time.
const MaxProbabilityModifier = 9.9999

// RuleResolution is the effective health-rule outcome for one deal
type RuleResolution struct {
	Matched             bool
	RuleID              int64
	Suppression         bool
	ProbabilityModifier float64
	HealthModifier      float64
}

// NoRuleResolution is the effective outcome when no rule matches: pure CRM
// weighting with no adjustment.
func NoRuleResolution() RuleResolution {
	return RuleResolution{
		Suppression:         false,
		ProbabilityModifier: 1.0,
		HealthModifier:      1.0,
	}
}

// ResolveRule picks the effective rule for (bucket, score) from an org's
// rule table.
//
// Candidates share the deal's bucket and contain the score in their
// inclusive [min, max] range. Overlapping ranges resolve deterministically:
// largest MinScore wins, ties break to the smallest MaxScore, then to the
// lowest rule ID. A nil score, or no candidate at all, resolves to
// NoRuleResolution. Suppression forces the effective modifier to 0.0
// regardless of the stored value.
func ResolveRule(rules []models.HealthScoreRule, bucket models.StageBucket, score *int) RuleResolution {
	if score == nil {
		return NoRuleResolution()
	}

	var winner *models.HealthScoreRule
	for i := range rules {
		r := &rules[i]
		if r.MappedCategory != bucket {
			continue
		}
		if *score < r.MinScore || *score > r.MaxScore {
			continue
		}
		if winner == nil || ruleWins(r, winner) {
			winner = r
		}
	}

	if winner == nil {
		return NoRuleResolution()
	}

	res := RuleResolution{
		Matched:             true,
		RuleID:              winner.ID,
		Suppression:         winner.Suppression,
		ProbabilityModifier: winner.ProbabilityModifier,
		HealthModifier:      winner.ProbabilityModifier,
	}
	if winner.Suppression {
		res.HealthModifier = 0.0
	}
	return res
}

// ruleWins reports whether candidate beats the current winner under the
// deterministic ordering.
func ruleWins(candidate, current *models.HealthScoreRule) bool {
	if candidate.MinScore != current.MinScore {
		return candidate.MinScore > current.MinScore
	}
	if candidate.MaxScore != current.MaxScore {
		return candidate.MaxScore < current.MaxScore
	}
	return candidate.ID < current.ID
}

// ClampModifier bounds a probability modifier to [0, MaxProbabilityModifier].
// Applied at write time by the admin service, never at read time.
func ClampModifier(m float64) float64 {
	if m < 0 {
		return 0
	}
	if m > MaxProbabilityModifier {
		return MaxProbabilityModifier
	}
	return m
}

// RuleOverlap is a pair of rules in the same org and category whose score
// ranges intersect. A read-only diagnostic for administrative tooling; it
// never blocks writes and never affects lookup.
type RuleOverlap struct {
	OrgID    string             `json:"org_id"`
	Category models.StageBucket `json:"category"`
	RuleA    int64              `json:"rule_a"`
	RuleB    int64              `json:"rule_b"`
}

// DetectOverlaps reports every intersecting rule pair per org and category
func DetectOverlaps(rules []models.HealthScoreRule) []RuleOverlap {
	var overlaps []RuleOverlap
	for i := range rules {
		for j := i + 1; j < len(rules); j++ {
			a, b := &rules[i], &rules[j]
			if a.OrgID != b.OrgID || a.MappedCategory != b.MappedCategory {
				continue
			}
			if a.MinScore <= b.MaxScore && b.MinScore <= a.MaxScore {
				overlaps = append(overlaps, RuleOverlap{
					OrgID:    a.OrgID,
					Category: a.MappedCategory,
					RuleA:    a.ID,
					RuleB:    b.ID,
				})
			}
		}
	}
	return overlaps
}
