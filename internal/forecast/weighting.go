package forecast

import (
	"math"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// MaxHealthScore is the top of the composite health-score scale
const MaxHealthScore = 30

// AI verdict thresholds on the raw health score. Intentionally independent
// of the rule-table bucket assignment.
const (
	aiCommitThreshold   = 24
	aiBestCaseThreshold = 18
)

// AIVerdictStage derives a bucket verdict from the raw health score alone
func AIVerdictStage(score *int) models.StageBucket {
	if score == nil {
		return models.BucketPipeline
	}
	switch {
	case *score >= aiCommitThreshold:
		return models.BucketCommit
	case *score >= aiBestCaseThreshold:
		return models.BucketBestCase
	default:
		return models.BucketPipeline
	}
}

// HealthPct converts a 0-30 health score to a 0-100 percentage. Returns nil
// when the score is nil or non-positive.
func HealthPct(score *int) *int {
	if score == nil || *score <= 0 {
		return nil
	}
	pct := int(math.Round(float64(*score) / MaxHealthScore * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return &pct
}

// Weigh computes the health and weighted figures for one deal.
//
// crm_weighted = amount x stage_probability
// ai_weighted  = amount x stage_probability x health_modifier
// gap          = ai_weighted - crm_weighted
func Weigh(deal *models.Deal, bucket models.StageBucket, probs models.StageProbabilities, res RuleResolution) (models.HealthDetail, models.WeightedDetail) {
	p := probs.ForBucket(bucket)
	crm := deal.Amount * p
	ai := deal.Amount * p * res.HealthModifier

	health := models.HealthDetail{
		HealthScore:         deal.HealthScore,
		HealthPct:           HealthPct(deal.HealthScore),
		Suppression:         res.Suppression,
		ProbabilityModifier: res.ProbabilityModifier,
		HealthModifier:      res.HealthModifier,
	}
	weighted := models.WeightedDetail{
		StageProbability: p,
		CRMWeighted:      crm,
		AIWeighted:       ai,
		Gap:              ai - crm,
	}
	return health, weighted
}
